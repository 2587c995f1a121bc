// Package datafile provides the public API for ClickPoints project files.
// It exposes the factory functions while keeping the storage implementation
// internal.
//
// Example:
//
//	df, err := datafile.Open("experiment.cdb", datafile.ModeReadWrite, datafile.Options{})
//	if err != nil {
//	    return err
//	}
//	defer df.Close()
//	img, err := df.SetImage(&types.Image{Filename: "frame0001.tif"})
package datafile

import (
	"github.com/fabrylab/clickpoints/internal/sqlite"
)

// DataFile is an open project file.
type DataFile = sqlite.DataFile

// Options tunes a DataFile. The zero value is usable.
type Options = sqlite.Options

// OpenMode selects how Open treats an existing file.
type OpenMode = sqlite.OpenMode

// CropOptions controls rectangle crops and line profiles.
type CropOptions = sqlite.CropOptions

// Open modes.
const (
	ModeRead      = sqlite.ModeRead
	ModeReadWrite = sqlite.ModeReadWrite
	ModeWrite     = sqlite.ModeWrite
)

// CurrentVersion is the schema version written by this package.
const CurrentVersion = sqlite.CurrentVersion

// Create creates a fresh project file at path, replacing any existing file.
func Create(path string, opts Options) (*DataFile, error) {
	return sqlite.Create(path, opts)
}

// Open opens the project file at path and upgrades older files.
func Open(path string, mode OpenMode, opts Options) (*DataFile, error) {
	return sqlite.Open(path, mode, opts)
}

// ParseOpenMode accepts "r", "r+" and "w".
func ParseOpenMode(s string) (OpenMode, error) {
	return sqlite.ParseOpenMode(s)
}
