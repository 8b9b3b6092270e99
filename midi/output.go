package midi

import (
	"errors"
	"fmt"
	"time"

	"go-sixteenstep/debug"
	"go-sixteenstep/sequencer"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DriverTimeout bounds port enumeration; CoreMIDI can hang
const DriverTimeout = 3 * time.Second

// ErrDriverTimeout is returned when the driver does not answer in time
var ErrDriverTimeout = errors.New("midi driver timeout (try: sudo killall coreaudiod midiserver)")

// Message translates an engine sink call into a wire message. ok is false
// for commands that have no mapping.
func Message(channel, command, a1, a2 uint8) (msg gomidi.Message, ok bool) {
	channel &= 0x0F
	switch command {
	case sequencer.CmdNoteOn:
		if a2 == 0 {
			return gomidi.NoteOff(channel, a1), true
		}
		return gomidi.NoteOn(channel, a1, a2), true
	case sequencer.CmdNoteOff:
		return gomidi.NoteOff(channel, a1), true
	case sequencer.CmdClock:
		return gomidi.TimingClock(), true
	case sequencer.CmdSongPosition:
		// LSB first; gomidi.SPP writes the MSB first
		return gomidi.Message([]byte{0xF2, a2 & 0x7F, a2 >> 7}), true
	case sequencer.CmdAllNotesOff:
		return gomidi.ControlChange(channel, CCAllNotesOff, 0), true
	}
	return nil, false
}

// SendFunc writes one message to a port
type SendFunc func(msg gomidi.Message) error

// PortSink is a sequencer.MIDISink writing to a send func
type PortSink struct {
	name string
	send SendFunc
}

// NewPortSink wraps send; name is only used in log lines
func NewPortSink(name string, send SendFunc) *PortSink {
	return &PortSink{name: name, send: send}
}

func (s *PortSink) EmitMIDI(channel, command, arg1, arg2 uint8) {
	msg, ok := Message(channel, command, arg1, arg2)
	if !ok {
		debug.Log("midi", "%s: no mapping for command x%02x", s.name, command)
		return
	}
	if err := s.send(msg); err != nil {
		debug.LogEvery(100, "midi", "%s: send failed: %v", s.name, err)
	}
}

// Output is an open output port
type Output struct {
	port drivers.Out
	send SendFunc
}

// OpenOut opens the output port whose name contains name, or the first
// port when name is empty
func OpenOut(name string) (*Output, error) {
	var port drivers.Out
	var err error
	if name == "" {
		port, err = gomidi.OutPort(0)
	} else {
		port, err = gomidi.FindOutPort(name)
	}
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", name, err)
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", port.String(), err)
	}
	debug.Log("midi", "opened output %s", port.String())
	return &Output{port: port, send: send}, nil
}

func (o *Output) Name() string {
	return o.port.String()
}

func (o *Output) Send(msg gomidi.Message) error {
	return o.send(msg)
}

// Sink returns a sequencer.MIDISink for this port
func (o *Output) Sink() *PortSink {
	return NewPortSink(o.Name(), o.send)
}

func (o *Output) Close() error {
	return o.port.Close()
}

// OpenIn finds the input port whose name contains name
func OpenIn(name string) (drivers.In, error) {
	var port drivers.In
	var err error
	if name == "" {
		port, err = gomidi.InPort(0)
	} else {
		port, err = gomidi.FindInPort(name)
	}
	if err != nil {
		return nil, fmt.Errorf("find input %q: %w", name, err)
	}
	return port, nil
}

// Ports lists driver ports by name
type Ports struct {
	In  []string
	Out []string
}

// ListPorts enumerates ports, giving up after timeout
func ListPorts(timeout time.Duration) (Ports, error) {
	ins, outs, err := listPorts(timeout)
	if err != nil {
		return Ports{}, err
	}
	var p Ports
	for _, in := range ins {
		p.In = append(p.In, in.String())
	}
	for _, out := range outs {
		p.Out = append(p.Out, out.String())
	}
	return p, nil
}

func listPorts(timeout time.Duration) ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		inPorts := gomidi.GetInPorts()
		outPorts := gomidi.GetOutPorts()
		ch <- portsResult{inPorts: inPorts, outPorts: outPorts}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, nil
	case <-time.After(timeout):
		return nil, nil, ErrDriverTimeout
	}
}

// CloseDriver releases the MIDI driver
func CloseDriver() {
	gomidi.CloseDriver()
}
