// keyboard_matrix.go - Active-low key matrices for the Spectrum, C64 and Z88

/*
keyboard_matrix.go - Keyboard Matrix

All three families scan their keyboard the same way: the CPU pulls one or more
row lines low and reads back the column lines, where a pressed key at the
crossing of a selected row pulls its column low. With several rows selected
the result is the AND of the selected rows.

  Spectrum: 8 half-rows x 5 keys, rows selected by A8-A15 of port 0xFE
  C64:      8 x 8, rows driven by CIA1 port A, columns read on port B
  Z88:      8 x 8, rows selected by A8-A15 of Blink port 0xB2

A key code is row*columns + column.
*/

package main

import "unicode"

// KeyboardMatrix stores the pressed state of every key as active-low rows.
type KeyboardMatrix struct {
	columns int
	rows    [8]byte
	pressed int
}

func NewKeyboardMatrix(columns int) *KeyboardMatrix {
	k := &KeyboardMatrix{columns: columns}
	k.Reset()
	return k
}

func (k *KeyboardMatrix) Reset() {
	for i := range k.rows {
		k.rows[i] = 0xFF
	}
	k.pressed = 0
}

func (k *KeyboardMatrix) Dispose() {}

// SetKeyStatus presses or releases a key. Codes outside the matrix are
// ignored.
func (k *KeyboardMatrix) SetKeyStatus(code int, down bool) {
	if code < 0 || code >= 8*k.columns {
		return
	}
	row, bit := code/k.columns, byte(1)<<(code%k.columns)
	was := k.rows[row]&bit == 0
	if down {
		k.rows[row] &^= bit
	} else {
		k.rows[row] |= bit
	}
	switch {
	case down && !was:
		k.pressed++
	case !down && was:
		k.pressed--
	}
}

func (k *KeyboardMatrix) IsKeyDown(code int) bool {
	if code < 0 || code >= 8*k.columns {
		return false
	}
	return k.rows[code/k.columns]&(1<<(code%k.columns)) == 0
}

// AnyKeyPressed reports whether at least one key is down.
func (k *KeyboardMatrix) AnyKeyPressed() bool { return k.pressed > 0 }

// SetRow overwrites one row with an active-low column byte.
func (k *KeyboardMatrix) SetRow(row int, value byte) {
	k.rows[row&7] = value
	k.pressed = 0
	for _, r := range k.rows {
		for b := range k.columns {
			if r&(1<<b) == 0 {
				k.pressed++
			}
		}
	}
}

// GetKeyLineStatus returns the AND of every row whose bit is 0 in
// rowSelect. With no row selected all lines read high.
func (k *KeyboardMatrix) GetKeyLineStatus(rowSelect byte) byte {
	status := byte(0xFF)
	for row := range 8 {
		if rowSelect&(1<<row) == 0 {
			status &= k.rows[row]
		}
	}
	return status
}

// GetColumnLineStatus is the reverse scan: the returned byte has a row bit
// low when a pressed key in that row sits on a selected (low) column.
func (k *KeyboardMatrix) GetColumnLineStatus(colSelect byte) byte {
	status := byte(0xFF)
	for row := range 8 {
		if ^k.rows[row]&^colSelect != 0 {
			status &^= 1 << row
		}
	}
	return status
}

// =============================================================================
// ZX Spectrum key codes (half-row * 5 + bit)
// =============================================================================

const (
	SpKeyCapsShift = iota
	SpKeyZ
	SpKeyX
	SpKeyC
	SpKeyV
	SpKeyA
	SpKeyS
	SpKeyD
	SpKeyF
	SpKeyG
	SpKeyQ
	SpKeyW
	SpKeyE
	SpKeyR
	SpKeyT
	SpKey1
	SpKey2
	SpKey3
	SpKey4
	SpKey5
	SpKey0
	SpKey9
	SpKey8
	SpKey7
	SpKey6
	SpKeyP
	SpKeyO
	SpKeyI
	SpKeyU
	SpKeyY
	SpKeyEnter
	SpKeyL
	SpKeyK
	SpKeyJ
	SpKeyH
	SpKeySpace
	SpKeySymShift
	SpKeyM
	SpKeyN
	SpKeyB
)

var spectrumLetterKeys = [26]int{
	SpKeyA, SpKeyB, SpKeyC, SpKeyD, SpKeyE, SpKeyF, SpKeyG, SpKeyH, SpKeyI,
	SpKeyJ, SpKeyK, SpKeyL, SpKeyM, SpKeyN, SpKeyO, SpKeyP, SpKeyQ, SpKeyR,
	SpKeyS, SpKeyT, SpKeyU, SpKeyV, SpKeyW, SpKeyX, SpKeyY, SpKeyZ,
}

var spectrumDigitKeys = [10]int{
	SpKey0, SpKey1, SpKey2, SpKey3, SpKey4, SpKey5, SpKey6, SpKey7, SpKey8, SpKey9,
}

// Symbol shift combinations for printable punctuation.
var spectrumSymbolKeys = map[rune]int{
	'!': SpKey1, '@': SpKey2, '#': SpKey3, '$': SpKey4, '%': SpKey5,
	'&': SpKey6, '\'': SpKey7, '(': SpKey8, ')': SpKey9, '_': SpKey0,
	'<': SpKeyR, '>': SpKeyT, ';': SpKeyO, '"': SpKeyP, '=': SpKeyL,
	'+': SpKeyK, '-': SpKeyJ, '^': SpKeyH, ':': SpKeyZ, '?': SpKeyC,
	'/': SpKeyV, '*': SpKeyB, ',': SpKeyN, '.': SpKeyM,
}

// spectrumKeysForRune maps a character to the keys typed for it in the
// default L/C cursor mode.
func spectrumKeysForRune(r rune) (primary, secondary int, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return spectrumLetterKeys[r-'a'], NO_KEY, true
	case r >= 'A' && r <= 'Z':
		return spectrumLetterKeys[r-'A'], SpKeyCapsShift, true
	case r >= '0' && r <= '9':
		return spectrumDigitKeys[r-'0'], NO_KEY, true
	case r == ' ':
		return SpKeySpace, NO_KEY, true
	case r == '\n' || r == '\r':
		return SpKeyEnter, NO_KEY, true
	}
	if k, found := spectrumSymbolKeys[r]; found {
		return k, SpKeySymShift, true
	}
	return NO_KEY, NO_KEY, false
}

// =============================================================================
// Commodore 64 key codes (CIA1 port A row * 8 + port B bit)
// =============================================================================

const (
	C64KeyDelete = iota
	C64KeyReturn
	C64KeyCursorRight
	C64KeyF7
	C64KeyF1
	C64KeyF3
	C64KeyF5
	C64KeyCursorDown
	C64Key3
	C64KeyW
	C64KeyA
	C64Key4
	C64KeyZ
	C64KeyS
	C64KeyE
	C64KeyLeftShift
	C64Key5
	C64KeyR
	C64KeyD
	C64Key6
	C64KeyC
	C64KeyF
	C64KeyT
	C64KeyX
	C64Key7
	C64KeyY
	C64KeyG
	C64Key8
	C64KeyB
	C64KeyH
	C64KeyU
	C64KeyV
	C64Key9
	C64KeyI
	C64KeyJ
	C64Key0
	C64KeyM
	C64KeyK
	C64KeyO
	C64KeyN
	C64KeyPlus
	C64KeyP
	C64KeyL
	C64KeyMinus
	C64KeyPeriod
	C64KeyColon
	C64KeyAt
	C64KeyComma
	C64KeyPound
	C64KeyAsterisk
	C64KeySemicolon
	C64KeyHome
	C64KeyRightShift
	C64KeyEquals
	C64KeyUpArrow
	C64KeySlash
	C64Key1
	C64KeyLeftArrow
	C64KeyControl
	C64Key2
	C64KeySpace
	C64KeyCommodore
	C64KeyQ
	C64KeyRunStop
)

var c64LetterKeys = [26]int{
	C64KeyA, C64KeyB, C64KeyC, C64KeyD, C64KeyE, C64KeyF, C64KeyG, C64KeyH, C64KeyI,
	C64KeyJ, C64KeyK, C64KeyL, C64KeyM, C64KeyN, C64KeyO, C64KeyP, C64KeyQ, C64KeyR,
	C64KeyS, C64KeyT, C64KeyU, C64KeyV, C64KeyW, C64KeyX, C64KeyY, C64KeyZ,
}

var c64DigitKeys = [10]int{
	C64Key0, C64Key1, C64Key2, C64Key3, C64Key4, C64Key5, C64Key6, C64Key7, C64Key8, C64Key9,
}

var c64SymbolKeys = map[rune][2]int{
	'+': {C64KeyPlus, NO_KEY}, '-': {C64KeyMinus, NO_KEY}, '.': {C64KeyPeriod, NO_KEY},
	':': {C64KeyColon, NO_KEY}, '@': {C64KeyAt, NO_KEY}, ',': {C64KeyComma, NO_KEY},
	'*': {C64KeyAsterisk, NO_KEY}, ';': {C64KeySemicolon, NO_KEY}, '=': {C64KeyEquals, NO_KEY},
	'/': {C64KeySlash, NO_KEY},
	'!': {C64Key1, C64KeyLeftShift}, '"': {C64Key2, C64KeyLeftShift}, '#': {C64Key3, C64KeyLeftShift},
	'$': {C64Key4, C64KeyLeftShift}, '%': {C64Key5, C64KeyLeftShift}, '&': {C64Key6, C64KeyLeftShift},
	'\'': {C64Key7, C64KeyLeftShift}, '(': {C64Key8, C64KeyLeftShift}, ')': {C64Key9, C64KeyLeftShift},
	'<': {C64KeyComma, C64KeyLeftShift}, '>': {C64KeyPeriod, C64KeyLeftShift},
	'?': {C64KeySlash, C64KeyLeftShift}, '[': {C64KeyColon, C64KeyLeftShift},
	']': {C64KeySemicolon, C64KeyLeftShift},
}

// c64KeysForRune maps characters to unshifted keys; the C64 upper case
// character set is typed without shift.
func c64KeysForRune(r rune) (primary, secondary int, ok bool) {
	r = unicode.ToLower(r)
	switch {
	case r >= 'a' && r <= 'z':
		return c64LetterKeys[r-'a'], NO_KEY, true
	case r >= '0' && r <= '9':
		return c64DigitKeys[r-'0'], NO_KEY, true
	case r == ' ':
		return C64KeySpace, NO_KEY, true
	case r == '\n' || r == '\r':
		return C64KeyReturn, NO_KEY, true
	}
	if k, found := c64SymbolKeys[r]; found {
		return k[0], k[1], true
	}
	return NO_KEY, NO_KEY, false
}

// =============================================================================
// Cambridge Z88 key codes (A8..A15 row * 8 + data bit)
// =============================================================================

const (
	Z88Key8 = iota
	Z88Key7
	Z88KeyN
	Z88KeyH
	Z88KeyY
	Z88Key6
	Z88KeyEnter
	Z88KeyDelete
	Z88KeyI
	Z88KeyU
	Z88KeyB
	Z88KeyG
	Z88KeyT
	Z88Key5
	Z88KeyUp
	Z88KeyBackslash
	Z88KeyO
	Z88KeyJ
	Z88KeyV
	Z88KeyF
	Z88KeyR
	Z88Key4
	Z88KeyDown
	Z88KeyEquals
	Z88Key9
	Z88KeyK
	Z88KeyC
	Z88KeyD
	Z88KeyE
	Z88Key3
	Z88KeyRight
	Z88KeyMinus
	Z88KeyP
	Z88KeyM
	Z88KeyX
	Z88KeyS
	Z88KeyW
	Z88Key2
	Z88KeyLeft
	Z88KeyRightBracket
	Z88Key0
	Z88KeyL
	Z88KeyZ
	Z88KeyA
	Z88KeyQ
	Z88Key1
	Z88KeySpace
	Z88KeyLeftBracket
	Z88KeyQuote
	Z88KeySemicolon
	Z88KeyComma
	Z88KeyMenu
	Z88KeyDiamond
	Z88KeyTab
	Z88KeyLeftShift
	Z88KeyHelp
	Z88KeyPound
	Z88KeySlash
	Z88KeyPeriod
	Z88KeyCapsLock
	Z88KeyIndex
	Z88KeyEscape
	Z88KeySquare
	Z88KeyRightShift
)

var z88LetterKeys = [26]int{
	Z88KeyA, Z88KeyB, Z88KeyC, Z88KeyD, Z88KeyE, Z88KeyF, Z88KeyG, Z88KeyH, Z88KeyI,
	Z88KeyJ, Z88KeyK, Z88KeyL, Z88KeyM, Z88KeyN, Z88KeyO, Z88KeyP, Z88KeyQ, Z88KeyR,
	Z88KeyS, Z88KeyT, Z88KeyU, Z88KeyV, Z88KeyW, Z88KeyX, Z88KeyY, Z88KeyZ,
}

var z88DigitKeys = [10]int{
	Z88Key0, Z88Key1, Z88Key2, Z88Key3, Z88Key4, Z88Key5, Z88Key6, Z88Key7, Z88Key8, Z88Key9,
}

var z88SymbolKeys = map[rune]int{
	'\\': Z88KeyBackslash, '=': Z88KeyEquals, '-': Z88KeyMinus, ']': Z88KeyRightBracket,
	'[': Z88KeyLeftBracket, '\'': Z88KeyQuote, ';': Z88KeySemicolon, ',': Z88KeyComma,
	'/': Z88KeySlash, '.': Z88KeyPeriod,
}

func z88KeysForRune(r rune) (primary, secondary int, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return z88LetterKeys[r-'a'], NO_KEY, true
	case r >= 'A' && r <= 'Z':
		return z88LetterKeys[r-'A'], Z88KeyLeftShift, true
	case r >= '0' && r <= '9':
		return z88DigitKeys[r-'0'], NO_KEY, true
	case r == ' ':
		return Z88KeySpace, NO_KEY, true
	case r == '\n' || r == '\r':
		return Z88KeyEnter, NO_KEY, true
	}
	if k, found := z88SymbolKeys[r]; found {
		return k, NO_KEY, true
	}
	return NO_KEY, NO_KEY, false
}
