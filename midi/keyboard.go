package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardInput handles a standard MIDI keyboard (input only)
type KeyboardInput struct {
	id       string
	channel  int // 0-15, -1 = omni
	stopFunc func()

	mu       sync.Mutex
	closed   bool
	noteChan chan NoteEvent
}

// NewKeyboardInput listens on inPort for note-ons. channel filters to one
// MIDI channel (0-15); pass -1 to accept all.
func NewKeyboardInput(id string, inPort drivers.In, channel int) (*KeyboardInput, error) {
	kb := &KeyboardInput{
		id:       id,
		channel:  channel,
		noteChan: make(chan NoteEvent, 32),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			kb.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

// handle runs on the driver's goroutine; a full channel drops the note
func (kb *KeyboardInput) handle(msg gomidi.Message) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return
	}
	if kb.channel >= 0 && int(channel) != kb.channel {
		return
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return
	}
	select {
	case kb.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
	default:
	}
}

func (kb *KeyboardInput) ID() string {
	return kb.id
}

func (kb *KeyboardInput) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardInput) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *KeyboardInput) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.closed {
		kb.closed = true
		close(kb.noteChan)
	}
	return nil
}
