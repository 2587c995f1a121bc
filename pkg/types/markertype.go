package types

import (
	"fmt"
	"strings"
)

// Mode selects the geometry table the annotations of a MarkerType live in.
// The values are the bit flags stored in markertype.mode.
type Mode int

const (
	ModePoint     Mode = 0
	ModeRectangle Mode = 1
	ModeLine      Mode = 2
	ModeTrack     Mode = 4
	ModeEllipse   Mode = 8
	ModePolygon   Mode = 16
)

var modeNames = map[Mode]string{
	ModePoint:     "point",
	ModeRectangle: "rectangle",
	ModeLine:      "line",
	ModeTrack:     "track",
	ModeEllipse:   "ellipse",
	ModePolygon:   "polygon",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode accepts a mode name ("point", "rect", "line", ...).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "marker", "normal":
		return ModePoint, nil
	case "rect", "rectangle":
		return ModeRectangle, nil
	case "line":
		return ModeLine, nil
	case "track":
		return ModeTrack, nil
	case "ellipse":
		return ModeEllipse, nil
	case "polygon":
		return ModePolygon, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MarkerType names a class of annotations and fixes their geometry kind.
type MarkerType struct {
	ID     int64
	Name   string
	Color  string
	Mode   Mode
	Style  string
	Text   string
	Hidden bool
}
