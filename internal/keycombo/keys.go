package keycombo

import (
	"fmt"
	"strings"
)

// keyNames are the canonical key names, lowercase X11 keysym style.
var keyNames = []string{
	"alt_l", "alt_r", "control_l", "control_r", "shift_l", "shift_r",
	"super_l", "super_r", "caps_lock", "num_lock", "scroll_lock", "fn",

	"return", "tab", "backspace", "delete", "escape", "clear", "insert",
	"print", "pause", "menu", "space",

	"up", "down", "left", "right", "page_up", "page_down", "home", "end",

	"exclam", "quotedbl", "numbersign", "dollar", "percent", "ampersand",
	"apostrophe", "parenleft", "parenright", "asterisk", "plus", "comma",
	"minus", "period", "slash", "colon", "semicolon", "less", "equal",
	"greater", "question", "at", "bracketleft", "backslash", "bracketright",
	"asciicircum", "underscore", "grave", "braceleft", "bar", "braceright",
	"asciitilde",

	"kp_add", "kp_decimal", "kp_delete", "kp_divide", "kp_enter", "kp_equal",
	"kp_multiply", "kp_subtract",

	"audioraisevolume", "audiolowervolume", "audiomute", "audioplay",
	"audiopause", "audionext", "audioprev", "audiorewind", "eject",
	"monbrightnessup", "monbrightnessdown", "kbdbrightnessup",
	"kbdbrightnessdown",
}

// keyAliases maps alternate names to canonical ones.
var keyAliases = map[string]string{
	"alt":     "alt_l",
	"option":  "alt_l",
	"control": "control_l",
	"shift":   "shift_l",
	"super":   "super_l",
	"command": "super_l",
	"windows": "super_l",
	"prior":   "page_up",
	"next":    "page_down",
	"enter":   "return",
	"esc":     "escape",
}

var keyTable = buildKeyTable()

func buildKeyTable() map[string]string {
	table := make(map[string]string, len(keyNames)+64)
	for _, name := range keyNames {
		table[name] = name
	}
	for c := 'a'; c <= 'z'; c++ {
		table[string(c)] = string(c)
	}
	for d := 0; d <= 9; d++ {
		name := fmt.Sprint(d)
		table[name] = name
		table["kp_"+name] = "kp_" + name
	}
	for f := 1; f <= 24; f++ {
		name := fmt.Sprintf("f%d", f)
		table[name] = name
	}
	for alias, name := range keyAliases {
		table[alias] = name
	}
	return table
}

// KnownKey resolves a key name, or one of its aliases, to its canonical
// name. It is the Lookup used to validate combos before output.
func KnownKey(name string) (string, bool) {
	code, ok := keyTable[strings.ToLower(name)]
	return code, ok
}

// Validate parses combo against the known key names.
func Validate(combo string) error {
	_, err := Parse(combo, KnownKey)
	return err
}
