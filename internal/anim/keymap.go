package anim

// KeyPos holds grid coordinates for one named key.
type KeyPos struct {
	X int
	Y int
}

// KeyMap maps key names to their positions on the keyboard grid.
// Instances look positions up but never own or mutate the map.
type KeyMap map[string]KeyPos

// Keys returns the map's key names in no particular order.
func (m KeyMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for name := range m {
		keys = append(keys, name)
	}
	return keys
}

// DefaultLayout returns a standard ANSI-ish grid so the daemon is
// usable without a hardware layer feeding real key positions.
func DefaultLayout() KeyMap {
	rows := [][]string{
		{"esc", "f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12"},
		{"grave", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "minus", "equal", "bspace"},
		{"tab", "q", "w", "e", "r", "t", "y", "u", "i", "o", "p", "lbrace", "rbrace", "bslash"},
		{"caps", "a", "s", "d", "f", "g", "h", "j", "k", "l", "colon", "quote", "enter"},
		{"lshift", "z", "x", "c", "v", "b", "n", "m", "comma", "dot", "slash", "rshift"},
		{"lctrl", "lwin", "lalt", "space", "ralt", "rwin", "rmenu", "rctrl"},
	}
	m := make(KeyMap)
	for y, row := range rows {
		for x, name := range row {
			m[name] = KeyPos{X: x, Y: y}
		}
	}
	return m
}
