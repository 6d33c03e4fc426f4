package processor

import (
	"gitlab.com/gomidi/midi/v2"
)

// PanicMessages returns the messages that silence everything the tracker
// considers sounding, followed by an all notes off controller per used channel.
func PanicMessages(t *NoteTracker) []midi.Message {
	var msgs []midi.Message
	var channels [16]bool
	for _, k := range t.Notes() {
		msgs = append(msgs, midi.NoteOff(k.Ch, k.Note))
		channels[k.Ch&0x0F] = true
	}
	for ch, used := range channels {
		if used {
			msgs = append(msgs, midi.ControlChange(uint8(ch), 123, 0))
		}
	}
	return msgs
}
