package rack

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"go-sixteenstep/config"
	"go-sixteenstep/debug"
	"go-sixteenstep/midi"
	"go-sixteenstep/sequencer"
)

// StepEvent reports one step advance of one track
type StepEvent struct {
	Track    int
	Current  int
	Previous int
}

// OpenFunc opens an output port by name and returns its sink
type OpenFunc func(portName string) (sequencer.MIDISink, io.Closer, error)

// Option configures a Manager
type Option func(*Manager)

// WithOpener replaces the MIDI port opener
func WithOpener(open OpenFunc) Option {
	return func(m *Manager) {
		m.open = open
	}
}

// WithClockSource sets the time source shared by all tracks
func WithClockSource(c sequencer.Clock) Option {
	return func(m *Manager) {
		m.clock = NewSharedClock(c)
	}
}

// WithPollInterval overrides the configured poll period
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.poll = d
	}
}

// Manager runs several engines in lockstep and routes their output to
// MIDI ports
type Manager struct {
	tracks []*Track
	clock  *SharedClock
	poll   time.Duration

	mu      sync.RWMutex
	focused int
	input   <-chan midi.NoteEvent

	// Multi-port MIDI output
	defaultPort string
	open        OpenFunc
	sinks       map[string]sequencer.MIDISink
	closers     []io.Closer
	sendersMu   sync.RWMutex

	steps chan StepEvent
}

// NewManager builds one track per configured track. All engines share one
// clock; the first track sends MIDI clock and song position.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	m := &Manager{
		poll:        cfg.PollInterval(),
		defaultPort: cfg.OutputPort,
		open:        openPort,
		sinks:       make(map[string]sequencer.MIDISink),
		steps:       make(chan StepEvent, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = NewSharedClock(nil)
	}

	memory := cfg.Memory
	if memory <= 0 {
		memory = sequencer.DefaultMemory
	}
	for i, tc := range cfg.Tracks {
		t := &Track{
			Name:     tc.Name,
			PortName: tc.PortName,
			Channel:  tc.Channel,
			index:    i,
		}
		t.muted.Store(tc.Muted)
		t.Engine = sequencer.New(
			sequencer.WithMemory(memory),
			sequencer.WithClock(m.clock),
			sequencer.WithMIDISink(&trackSink{m: m, t: t}),
			sequencer.WithStepHandler(m.stepHandler(i)),
			sequencer.WithClockOutput(i == 0),
		)
		t.Engine.Begin(cfg.Engine(i))
		m.tracks = append(m.tracks, t)
	}

	debug.Log("rack", "created %d tracks, default port %q", len(m.tracks), m.defaultPort)
	return m
}

func openPort(portName string) (sequencer.MIDISink, io.Closer, error) {
	out, err := midi.OpenOut(portName)
	if err != nil {
		return nil, nil, err
	}
	return out.Sink(), out, nil
}

func (m *Manager) stepHandler(track int) sequencer.StepHandler {
	return sequencer.StepFunc(func(current, previous int) {
		select {
		case m.steps <- StepEvent{Track: track, Current: current, Previous: previous}:
		default:
			// Drop if channel full
		}
	})
}

// Steps returns the step advances of every track
func (m *Manager) Steps() <-chan StepEvent {
	return m.steps
}

// Tracks returns the rack's tracks
func (m *Manager) Tracks() []*Track {
	return m.tracks
}

// Track returns track i or nil
func (m *Manager) Track(i int) *Track {
	if i < 0 || i >= len(m.tracks) {
		return nil
	}
	return m.tracks[i]
}

// sink returns the sink for the given port name, lazily opening it
func (m *Manager) sink(portName string) sequencer.MIDISink {
	if portName == "" {
		portName = m.defaultPort
	}

	m.sendersMu.RLock()
	if s, ok := m.sinks[portName]; ok {
		m.sendersMu.RUnlock()
		return s
	}
	m.sendersMu.RUnlock()

	m.sendersMu.Lock()
	defer m.sendersMu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := m.sinks[portName]; ok {
		return s
	}

	s, closer, err := m.open(portName)
	if err != nil {
		debug.Log("rack", "open port %q: %v", portName, err)
		// cache the failure so a missing port is not retried every step
		m.sinks[portName] = nil
		return nil
	}
	m.sinks[portName] = s
	if closer != nil {
		m.closers = append(m.closers, closer)
	}
	return s
}

// OpenPort opens an output port ahead of the first note. An empty name is
// the default port.
func (m *Manager) OpenPort(portName string) error {
	if m.sink(portName) == nil {
		if portName == "" {
			portName = m.defaultPort
		}
		return fmt.Errorf("output %q unavailable", portName)
	}
	return nil
}

// Play starts every track from the top at the same instant
func (m *Manager) Play() {
	m.clock.Latch()
	for _, t := range m.tracks {
		t.Engine.Start()
	}
}

// Stop halts every track
func (m *Manager) Stop() {
	for _, t := range m.tracks {
		t.Engine.Stop()
	}
}

// Pause toggles every track. On resume the clock track reports its
// position as song position.
func (m *Manager) Pause() {
	m.clock.Latch()
	for _, t := range m.tracks {
		if t.Engine.Pause() && t.index == 0 {
			t.Engine.SendSongPosition()
		}
	}
}

// AllNotesOff silences every channel of every track, keeping the notes
func (m *Manager) AllNotesOff() {
	for _, t := range m.tracks {
		t.Engine.AllNotesOff()
	}
}

// Panic silences every channel of every track and clears all notes
func (m *Manager) Panic() {
	for _, t := range m.tracks {
		t.Engine.Panic()
	}
	debug.Log("rack", "panic")
}

// SetTempo sets the BPM of every track
func (m *Manager) SetTempo(bpm int) {
	for _, t := range m.tracks {
		t.Engine.SetTempo(bpm)
	}
}

// SetShuffle sets the swing of every track
func (m *Manager) SetShuffle(divisions int) {
	for _, t := range m.tracks {
		t.Engine.SetShuffle(divisions)
	}
}

// Focus selects the track that records live input
func (m *Manager) Focus(i int) error {
	if i < 0 || i >= len(m.tracks) {
		return fmt.Errorf("track %d out of range 0..%d", i, len(m.tracks)-1)
	}
	m.mu.Lock()
	m.focused = i
	m.mu.Unlock()
	debug.Log("rack", "focus track %d (%s)", i, m.tracks[i].Name)
	return nil
}

// Focused returns the index of the recording track
func (m *Manager) Focused() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focused
}

// SetMIDIInput sets the MIDI keyboard input source, drained by Run
func (m *Manager) SetMIDIInput(in <-chan midi.NoteEvent) {
	m.mu.Lock()
	m.input = in
	m.mu.Unlock()
}

// HandleNote handles live MIDI input on the focused track: echo
// immediately, then record
func (m *Manager) HandleNote(note, velocity uint8) {
	m.handleEvent(midi.NoteEvent{Note: note, Velocity: velocity})
}

func (m *Manager) handleEvent(ev midi.NoteEvent) {
	t := m.Track(m.Focused())
	if t == nil {
		return
	}

	cmd := sequencer.CmdNoteOn
	if ev.Velocity == 0 {
		cmd = sequencer.CmdNoteOff
	}
	(&trackSink{m: m, t: t}).EmitMIDI(ev.Channel, cmd, ev.Note, ev.Velocity)

	t.Engine.InsertLive(t.outChannel(ev.Channel), ev.Note, ev.Velocity)
}

// drainInput handles every queued input event without blocking
func (m *Manager) drainInput() {
	m.mu.RLock()
	in := m.input
	m.mu.RUnlock()
	if in == nil {
		return
	}

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				m.SetMIDIInput(nil)
				return
			}
			m.handleEvent(ev)
		default:
			return
		}
	}
}

// Tick runs one loop iteration: latch the clock, handle input, then poll
// every track
func (m *Manager) Tick() {
	m.clock.Latch()
	m.drainInput()
	for _, t := range m.tracks {
		t.Engine.Poll()
	}
}

// Run polls the rack until ctx is cancelled, then stops all tracks and
// silences them. Stored notes are kept.
func (m *Manager) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	debug.Log("rack", "run loop started, poll every %v", m.poll)
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			m.AllNotesOff()
			debug.Log("rack", "run loop stopped")
			return nil
		default:
			m.Tick()
			time.Sleep(m.poll)
		}
	}
}

// Close releases every opened port
func (m *Manager) Close() error {
	m.sendersMu.Lock()
	defer m.sendersMu.Unlock()

	var firstErr error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closers = nil
	m.sinks = make(map[string]sequencer.MIDISink)
	return firstErr
}
