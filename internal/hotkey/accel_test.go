package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Accelerator
	}{
		{"Alt+Space", Accelerator{Mods: ModAlt, Key: "Space"}},
		{"ctrl+space", Accelerator{Mods: ModCtrl, Key: "Space"}},
		{"Ctrl + Shift + r", Accelerator{Mods: ModCtrl | ModShift, Key: "R"}},
		{"Cmd+Option+5", Accelerator{Mods: ModSuper | ModAlt, Key: "5"}},
		{"F9", Accelerator{Key: "F9"}},
		{"Super+Esc", Accelerator{Mods: ModSuper, Key: "Escape"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "Alt+", "Alt", "Space+Alt", "Ctrl+Hyper", "F13", "F1x", "Alt+PageUp"} {
		_, err := Parse(in)
		assert.Error(t, err, "Parse(%q)", in)
	}
}

func TestAcceleratorString(t *testing.T) {
	a, err := Parse("shift+alt+ctrl+k")
	require.NoError(t, err)
	assert.Equal(t, "Ctrl+Alt+Shift+K", a.String())
}

func TestX11Mapping(t *testing.T) {
	tests := []struct {
		in     string
		keysym string
		mods   int
	}{
		{"Alt+Space", "space", x11Mod1Mask},
		{"Ctrl+Shift+R", "r", x11ControlMask | x11ShiftMask},
		{"Super+F5", "F5", x11Mod4Mask},
	}

	for _, tt := range tests {
		a, err := Parse(tt.in)
		require.NoError(t, err)
		keysym, mods := a.x11()
		assert.Equal(t, tt.keysym, keysym, tt.in)
		assert.Equal(t, tt.mods, mods, tt.in)
	}
}

func TestCarbonMapping(t *testing.T) {
	a, err := Parse("Ctrl+Space")
	require.NoError(t, err)

	code, mods, ok := a.carbon()
	require.True(t, ok)
	assert.Equal(t, uint32(49), code)
	assert.Equal(t, uint32(carbonControlKey), mods)

	a, err = Parse("Cmd+Shift+V")
	require.NoError(t, err)
	code, mods, ok = a.carbon()
	require.True(t, ok)
	assert.Equal(t, uint32(9), code)
	assert.Equal(t, uint32(carbonCmdKey|carbonShiftKey), mods)
}
