package main

import "testing"

func TestKeyboardMatrix_RowsAreAnded(t *testing.T) {
	k := NewKeyboardMatrix(SPECTRUM_KEY_COLUMNS)
	k.SetKeyStatus(SpKeyZ, true)
	k.SetKeyStatus(SpKeyA, true)

	if got := k.GetKeyLineStatus(0xFE); got != 0xFD {
		t.Fatalf("row 0: got 0x%02X, want 0xFD", got)
	}
	if got := k.GetKeyLineStatus(0xFD); got != 0xFE {
		t.Fatalf("row 1: got 0x%02X, want 0xFE", got)
	}
	if got := k.GetKeyLineStatus(0xFC); got != 0xFC {
		t.Fatalf("rows 0 and 1: got 0x%02X, want 0xFC", got)
	}
	if got := k.GetKeyLineStatus(0xFF); got != 0xFF {
		t.Fatalf("no row: got 0x%02X, want 0xFF", got)
	}
}

func TestKeyboardMatrix_PressedCount(t *testing.T) {
	k := NewKeyboardMatrix(SPECTRUM_KEY_COLUMNS)
	k.SetKeyStatus(SpKeyEnter, true)
	k.SetKeyStatus(SpKeyEnter, true)
	if !k.AnyKeyPressed() || !k.IsKeyDown(SpKeyEnter) {
		t.Fatalf("Expected ENTER down")
	}
	k.SetKeyStatus(SpKeyEnter, false)
	if k.AnyKeyPressed() {
		t.Fatalf("Expected a repeated press to count once")
	}

	k.SetKeyStatus(-1, true)
	k.SetKeyStatus(40, true)
	if k.AnyKeyPressed() {
		t.Fatalf("Expected codes outside the matrix to be ignored")
	}

	k.SetRow(3, 0xFC)
	if !k.IsKeyDown(SpKey1) || !k.IsKeyDown(SpKey2) {
		t.Fatalf("Expected SetRow to press 1 and 2")
	}
	k.Reset()
	if k.AnyKeyPressed() {
		t.Fatalf("Expected reset to release every key")
	}
}

func TestKeyboardMatrix_ColumnScan(t *testing.T) {
	k := NewKeyboardMatrix(8)
	k.SetKeyStatus(C64KeyA, true) // row 1, column 2

	if got := k.GetColumnLineStatus(0xFB); got != 0xFD {
		t.Fatalf("column 2: got 0x%02X, want 0xFD", got)
	}
	if got := k.GetColumnLineStatus(0xFE); got != 0xFF {
		t.Fatalf("column 0: got 0x%02X, want 0xFF", got)
	}
	if got := k.GetKeyLineStatus(0xFD); got != 0xFB {
		t.Fatalf("row 1: got 0x%02X, want 0xFB", got)
	}
}

func TestKeysForRune(t *testing.T) {
	tests := []struct {
		name      string
		lookup    func(rune) (int, int, bool)
		r         rune
		primary   int
		secondary int
		ok        bool
	}{
		{"spectrum lower", spectrumKeysForRune, 'a', SpKeyA, NO_KEY, true},
		{"spectrum upper", spectrumKeysForRune, 'A', SpKeyA, SpKeyCapsShift, true},
		{"spectrum digit", spectrumKeysForRune, '7', SpKey7, NO_KEY, true},
		{"spectrum symbol", spectrumKeysForRune, '"', SpKeyP, SpKeySymShift, true},
		{"spectrum enter", spectrumKeysForRune, '\n', SpKeyEnter, NO_KEY, true},
		{"spectrum unknown", spectrumKeysForRune, '~', NO_KEY, NO_KEY, false},
		{"c64 upper", c64KeysForRune, 'Q', C64KeyQ, NO_KEY, true},
		{"c64 shifted", c64KeysForRune, '"', C64Key2, C64KeyLeftShift, true},
		{"c64 return", c64KeysForRune, '\r', C64KeyReturn, NO_KEY, true},
		{"z88 upper", z88KeysForRune, 'M', Z88KeyM, Z88KeyLeftShift, true},
		{"z88 symbol", z88KeysForRune, '[', Z88KeyLeftBracket, NO_KEY, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, s, ok := tc.lookup(tc.r)
			if p != tc.primary || s != tc.secondary || ok != tc.ok {
				t.Fatalf("got (%d, %d, %v), want (%d, %d, %v)", p, s, ok, tc.primary, tc.secondary, tc.ok)
			}
		})
	}
}
