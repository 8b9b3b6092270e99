package midi

// CCAllNotesOff is the channel mode controller that silences a channel
const CCAllNotesOff uint8 = 123

// NoteEvent is sent when a note is played on a keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
}
