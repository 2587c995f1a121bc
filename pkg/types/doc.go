// Package types defines the entity structs, query descriptions, value codecs
// and standard errors of a ClickPoints project file.
//
// Entities are plain structs keyed by the integer row id assigned by the
// database. Derived geometry that needs no storage access (Rectangle.Slice,
// Polygon.Area and friends) lives here as methods; anything that needs pixel
// data or offsets is provided by the DataFile in internal/sqlite.
package types
