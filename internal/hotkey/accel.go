package hotkey

import (
	"fmt"
	"strings"
)

// Modifier is a set of modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// Accelerator is a parsed key combination such as "Ctrl+Shift+R".
type Accelerator struct {
	Mods Modifier
	Key  string // canonical key name: "Space", "A", "7", "F5", ...
}

var modifierNames = map[string]Modifier{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

var namedKeys = map[string]string{
	"space":  "Space",
	"enter":  "Return",
	"return": "Return",
	"tab":    "Tab",
	"esc":    "Escape",
	"escape": "Escape",
}

// Parse reads an accelerator of the form "Mod+Mod+Key". Modifier and key
// names are case-insensitive; exactly one non-modifier key is required.
func Parse(accel string) (Accelerator, error) {
	var a Accelerator
	parts := strings.Split(accel, "+")

	for i, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return Accelerator{}, fmt.Errorf("hotkey %q: empty key name", accel)
		}
		if mod, ok := modifierNames[name]; ok && i < len(parts)-1 {
			a.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("hotkey %q: %q is not a modifier", accel, part)
		}

		key, err := canonicalKey(name)
		if err != nil {
			return Accelerator{}, fmt.Errorf("hotkey %q: %w", accel, err)
		}
		a.Key = key
	}

	return a, nil
}

func canonicalKey(name string) (string, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	if len(name) == 1 && (name[0] >= 'a' && name[0] <= 'z' || name[0] >= '0' && name[0] <= '9') {
		return strings.ToUpper(name), nil
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 12 && name == fmt.Sprintf("f%d", n) {
		return fmt.Sprintf("F%d", n), nil
	}
	return "", fmt.Errorf("unknown key %q", name)
}

func (a Accelerator) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModSuper, "Super"}} {
		if a.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, a.Key), "+")
}

// X11 modifier masks
const (
	x11ShiftMask   = 1
	x11ControlMask = 4
	x11Mod1Mask    = 8  // Alt
	x11Mod4Mask    = 64 // Super
)

// x11 returns the keysym name and modifier mask for XGrabKey.
func (a Accelerator) x11() (keysym string, mods int) {
	switch {
	case a.Key == "Space":
		keysym = "space"
	case len(a.Key) == 1:
		keysym = strings.ToLower(a.Key)
	default:
		keysym = a.Key
	}

	if a.Mods&ModShift != 0 {
		mods |= x11ShiftMask
	}
	if a.Mods&ModCtrl != 0 {
		mods |= x11ControlMask
	}
	if a.Mods&ModAlt != 0 {
		mods |= x11Mod1Mask
	}
	if a.Mods&ModSuper != 0 {
		mods |= x11Mod4Mask
	}
	return keysym, mods
}

// Carbon modifier flags
const (
	carbonCmdKey     = 0x100
	carbonShiftKey   = 0x200
	carbonOptionKey  = 0x800
	carbonControlKey = 0x1000
)

// Carbon virtual key codes (kVK_*), US layout
var carbonKeyCodes = map[string]uint32{
	"A": 0, "S": 1, "D": 2, "F": 3, "H": 4, "G": 5, "Z": 6, "X": 7, "C": 8, "V": 9,
	"B": 11, "Q": 12, "W": 13, "E": 14, "R": 15, "Y": 16, "T": 17,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25, "7": 26, "8": 28, "0": 29,
	"O": 31, "U": 32, "I": 34, "P": 35, "L": 37, "J": 38, "K": 40, "N": 45, "M": 46,
	"Return": 36, "Tab": 48, "Space": 49, "Escape": 53,
	"F1": 122, "F2": 120, "F3": 99, "F4": 118, "F5": 96, "F6": 97,
	"F7": 98, "F8": 100, "F9": 101, "F10": 109, "F11": 103, "F12": 111,
}

// carbon returns the virtual key code and modifier flags for RegisterEventHotKey.
func (a Accelerator) carbon() (code, mods uint32, ok bool) {
	code, ok = carbonKeyCodes[a.Key]
	if !ok {
		return 0, 0, false
	}

	if a.Mods&ModShift != 0 {
		mods |= carbonShiftKey
	}
	if a.Mods&ModCtrl != 0 {
		mods |= carbonControlKey
	}
	if a.Mods&ModAlt != 0 {
		mods |= carbonOptionKey
	}
	if a.Mods&ModSuper != 0 {
		mods |= carbonCmdKey
	}
	return code, mods, true
}
