package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"#ff0000", "#FF0000", false},
		{"00ff00", "#00FF00", false},
		{"#12345678", "#12345678", false},
		{" #abcdef ", "#ABCDEF", false},
		{"#fff", "", true},
		{"#GG0000", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeColor(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRGBA(t *testing.T) {
	r, g, b, a, err := RGBA("#102030")
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x10, 0x20, 0x30, 0xFF}, []uint8{r, g, b, a})

	r, g, b, a, err = RGBA("10203040")
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x10, 0x20, 0x30, 0x40}, []uint8{r, g, b, a})
}

func TestPaletteColorCycles(t *testing.T) {
	assert.Equal(t, PaletteColor(0), PaletteColor(len(defaultPalette)))
	_, err := NormalizeColor(PaletteColor(3))
	assert.NoError(t, err)
}
