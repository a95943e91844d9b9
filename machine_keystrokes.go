// machine_keystrokes.go - Emulated keystroke queue

package main

const (
	KEY_PRESS_FRAMES = 3 // frames a typed key is held down
	KEY_GAP_FRAMES   = 2 // frames between two typed keys
	NO_KEY           = -1
)

// EmulatedKeyStroke holds up to three keys between two absolute tacts.
type EmulatedKeyStroke struct {
	StartTact uint64
	EndTact   uint64
	Primary   int
	Secondary int
	Ternary   int
}

func (k EmulatedKeyStroke) keys() []int {
	keys := []int{k.Primary}
	if k.Secondary != NO_KEY {
		keys = append(keys, k.Secondary)
	}
	if k.Ternary != NO_KEY {
		keys = append(keys, k.Ternary)
	}
	return keys
}

// QueueKeystroke holds the given keys for frames frames, starting startFrame
// frames after the current tact. Pass NO_KEY for unused modifiers.
func (m *Machine) QueueKeystroke(startFrame, frames, primary, secondary, ternary int) {
	frameTacts := uint64(m.TactsInFrame * m.ClockMultiplier)
	start := m.Tacts + uint64(startFrame)*frameTacts
	m.keyStrokes = append(m.keyStrokes, EmulatedKeyStroke{
		StartTact: start,
		EndTact:   start + uint64(frames)*frameTacts,
		Primary:   primary,
		Secondary: secondary,
		Ternary:   ternary,
	})
}

// KeyQueueLength reports how many keystrokes are still pending.
func (m *Machine) KeyQueueLength() int {
	return len(m.keyStrokes)
}

// TypeText queues one keystroke per rune the model knows how to type.
// Unknown runes are skipped. It returns the number of queued strokes.
func (m *Machine) TypeText(text string) int {
	offset := 0
	if n := len(m.keyStrokes); n > 0 {
		last := m.keyStrokes[n-1]
		if last.EndTact > m.Tacts {
			frameTacts := uint64(m.TactsInFrame * m.ClockMultiplier)
			offset = int((last.EndTact-m.Tacts)/frameTacts) + KEY_GAP_FRAMES
		}
	}
	queued := 0
	for _, r := range text {
		primary, secondary, ok := m.model.KeysForRune(r)
		if !ok {
			continue
		}
		m.QueueKeystroke(offset, KEY_PRESS_FRAMES, primary, secondary, NO_KEY)
		offset += KEY_PRESS_FRAMES + KEY_GAP_FRAMES
		queued++
	}
	return queued
}

// emulateKeystroke runs at every frame start. It presses the head of the queue
// once its start tact has passed and releases it after its end tact.
func (m *Machine) emulateKeystroke() {
	if len(m.keyStrokes) == 0 {
		return
	}
	ks := m.keyStrokes[0]
	if ks.StartTact > m.Tacts {
		return
	}
	if ks.EndTact < m.Tacts {
		for _, k := range ks.keys() {
			m.model.SetKeyStatus(k, false)
		}
		m.keyStrokes = m.keyStrokes[1:]
		return
	}
	for _, k := range ks.keys() {
		m.model.SetKeyStatus(k, true)
	}
}
