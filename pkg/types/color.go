package types

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeColor validates a hex color string and returns its canonical form,
// "#RRGGBB" or "#RRGGBBAA" in upper case. The leading '#' is optional on input.
func NormalizeColor(color string) (string, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(color), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return "#" + strings.ToUpper(hex), nil
}

// RGBA splits a canonical color into its channels. Alpha is 255 for 6-digit
// colors.
func RGBA(color string) (r, g, b, a uint8, err error) {
	c, err := NormalizeColor(color)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	v, _ := strconv.ParseUint(c[1:], 16, 32)
	if len(c) == 7 {
		return uint8(v >> 16), uint8(v >> 8), uint8(v), 255, nil
	}
	return uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

// defaultPalette is cycled when a type is created without a color.
var defaultPalette = []string{
	"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF", "#00FFFF",
	"#FF8000", "#8000FF", "#0080FF", "#80FF00",
}

// PaletteColor returns the n-th color of the default palette.
func PaletteColor(n int) string {
	if n < 0 {
		n = -n
	}
	return defaultPalette[n%len(defaultPalette)]
}
