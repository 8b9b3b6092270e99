package rack

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go-sixteenstep/config"
	"go-sixteenstep/midi"
	"go-sixteenstep/sequencer"
)

type fakeClock struct {
	mu sync.Mutex
	ms uint32
}

func (c *fakeClock) NowMillis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *fakeClock) set(ms uint32) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

type midiMsg struct {
	channel, command, arg1, arg2 uint8
}

type portRecorder struct {
	mu   sync.Mutex
	msgs []midiMsg
}

func (r *portRecorder) EmitMIDI(channel, command, arg1, arg2 uint8) {
	r.mu.Lock()
	r.msgs = append(r.msgs, midiMsg{channel, command, arg1, arg2})
	r.mu.Unlock()
}

func (r *portRecorder) filter(command uint8) []midiMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []midiMsg
	for _, m := range r.msgs {
		if m.command == command {
			out = append(out, m)
		}
	}
	return out
}

type ports struct {
	mu     sync.Mutex
	byName map[string]*portRecorder
	opens  int
}

func (p *ports) open(name string) (sequencer.MIDISink, io.Closer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if name == "missing" {
		return nil, nil, errors.New("no such port")
	}
	r := &portRecorder{}
	p.byName[name] = r
	return r, nil, nil
}

func (p *ports) get(name string) *portRecorder {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.byName[name]; ok {
		return r
	}
	return &portRecorder{}
}

// newTestRack builds a 4-step rack: track 0 "lead" on the default port,
// track 1 "drums" on its own port pinned to channel 10
func newTestRack(t *testing.T) (*Manager, *fakeClock, *ports) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Steps = 4
	cfg.OutputPort = "main"
	cfg.Tracks = []config.TrackConfig{
		{Name: "lead"},
		{Name: "drums", PortName: "drums", Channel: 10},
	}

	clk := &fakeClock{}
	p := &ports{byName: make(map[string]*portRecorder)}
	m := NewManager(cfg, WithClockSource(clk), WithOpener(p.open))
	return m, clk, p
}

func TestTracksStayInLockstep(t *testing.T) {
	m, clk, _ := newTestRack(t)
	m.Play()

	for ms := uint32(0); ms <= 2000; ms += 7 {
		clk.set(ms)
		m.Tick()
		a, b := m.Track(0).Engine.Position(), m.Track(1).Engine.Position()
		if a != b {
			t.Fatalf("at %dms positions differ: %d vs %d", ms, a, b)
		}
	}
}

func TestClockFromFirstTrackOnly(t *testing.T) {
	m, clk, p := newTestRack(t)
	m.Track(1).PortName = "" // both tracks on the main port
	m.Play()

	clk.set(20)
	m.Tick()

	if n := len(p.get("main").filter(sequencer.CmdClock)); n != 1 {
		t.Errorf("main port got %d clock ticks, want 1", n)
	}
}

func TestRouting(t *testing.T) {
	m, clk, p := newTestRack(t)
	m.Track(0).Engine.InsertAt(0, 2, 60, 100)
	m.Track(1).Engine.InsertAt(0, 0, 36, 120)

	m.Play()
	clk.set(125)
	m.Tick()

	lead := p.get("main").filter(sequencer.CmdNoteOn)
	if len(lead) != 1 || lead[0] != (midiMsg{2, sequencer.CmdNoteOn, 60, 100}) {
		t.Errorf("main port notes = %v", lead)
	}
	drums := p.get("drums").filter(sequencer.CmdNoteOn)
	if len(drums) != 1 || drums[0] != (midiMsg{9, sequencer.CmdNoteOn, 36, 120}) {
		t.Errorf("drums port notes = %v", drums)
	}
}

func TestMutedTrackDropsNotes(t *testing.T) {
	m, clk, p := newTestRack(t)
	m.Track(1).Engine.InsertAt(0, 0, 36, 120)
	m.Track(1).SetMuted(true)

	m.Play()
	clk.set(125)
	m.Tick()

	if n := len(p.get("drums").filter(sequencer.CmdNoteOn)); n != 0 {
		t.Errorf("muted track sent %d notes", n)
	}
	if m.Track(1).Engine.Position() != 0 {
		t.Error("muted track did not advance")
	}
}

func TestHandleNote(t *testing.T) {
	m, _, p := newTestRack(t)
	if err := m.Focus(1); err != nil {
		t.Fatal(err)
	}
	m.Play()
	m.HandleNote(38, 90)

	echo := p.get("drums").filter(sequencer.CmdNoteOn)
	if len(echo) != 1 || echo[0] != (midiMsg{9, sequencer.CmdNoteOn, 38, 90}) {
		t.Errorf("echo = %v", echo)
	}
	got, ok := m.Track(1).Engine.QueryNote(0, 9)
	if !ok || got.Pitch != 38 {
		t.Errorf("recorded %v, %v", got, ok)
	}
	if m.Track(0).Engine.Len() != 0 {
		t.Error("unfocused track recorded the note")
	}
}

func TestMIDIInput(t *testing.T) {
	m, _, _ := newTestRack(t)
	in := make(chan midi.NoteEvent, 4)
	m.SetMIDIInput(in)
	m.Play()

	in <- midi.NoteEvent{Note: 64, Velocity: 100, Channel: 3}
	m.Tick()

	got, ok := m.Track(0).Engine.QueryNote(0, 3)
	if !ok || got.Pitch != 64 {
		t.Errorf("recorded %v, %v", got, ok)
	}

	close(in)
	m.Tick() // closed input is detached
	m.Tick()
}

func TestFocusRange(t *testing.T) {
	m, _, _ := newTestRack(t)
	for _, i := range []int{-1, 2} {
		if err := m.Focus(i); err == nil {
			t.Errorf("Focus(%d) accepted", i)
		}
	}
	if m.Focused() != 0 {
		t.Errorf("Focused() = %d, want 0", m.Focused())
	}
}

func TestPanic(t *testing.T) {
	m, _, p := newTestRack(t)
	m.Track(0).Engine.InsertAt(1, 0, 60, 100)
	m.Panic()

	if n := len(p.get("main").filter(sequencer.CmdAllNotesOff)); n != 16 {
		t.Errorf("main port got %d all-notes-off, want 16", n)
	}
	drums := p.get("drums").filter(sequencer.CmdAllNotesOff)
	if len(drums) != 1 || drums[0].channel != 9 {
		t.Errorf("pinned track sent %v", drums)
	}
	if m.Track(0).Engine.Len() != 0 {
		t.Error("Panic left notes stored")
	}
}

func TestSteps(t *testing.T) {
	m, clk, _ := newTestRack(t)
	m.Play()
	clk.set(125)
	m.Tick()

	seen := make(map[int]StepEvent)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-m.Steps():
			seen[ev.Track] = ev
		case <-time.After(time.Second):
			t.Fatal("missing step event")
		}
	}
	for track := 0; track < 2; track++ {
		if ev := seen[track]; ev.Current != 0 || ev.Previous != -1 {
			t.Errorf("track %d step event = %+v", track, ev)
		}
	}
}

func TestMissingPortOpenedOnce(t *testing.T) {
	m, clk, p := newTestRack(t)
	m.Track(1).PortName = "missing"
	m.Track(1).Engine.InsertAt(0, 0, 36, 100)
	m.Track(1).Engine.InsertAt(1, 0, 36, 100)

	m.Play()
	for _, ms := range []uint32{125, 250} {
		clk.set(ms)
		m.Tick()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opens != 2 { // main and missing
		t.Errorf("opener called %d times, want 2", p.opens)
	}
}

func TestTempoAndShuffle(t *testing.T) {
	m, _, _ := newTestRack(t)
	m.SetTempo(150)
	m.SetShuffle(3)
	for _, tr := range m.Tracks() {
		if tr.Engine.Tempo() != 150 || tr.Engine.Shuffle() != 3*tr.Engine.ShuffleDivision() {
			t.Errorf("track %s tempo %d shuffle %d", tr.Name, tr.Engine.Tempo(), tr.Engine.Shuffle())
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m, _, p := newTestRack(t)
	m.poll = time.Millisecond
	m.Play()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	if m.Track(0).Engine.Running() {
		t.Error("track still running after cancel")
	}
	if n := len(p.get("main").filter(sequencer.CmdAllNotesOff)); n != 16 {
		t.Errorf("got %d all-notes-off on exit, want 16", n)
	}
}

func TestSharedClockLatch(t *testing.T) {
	src := &fakeClock{}
	c := NewSharedClock(src)
	src.set(40)
	if c.NowMillis() != 0 {
		t.Errorf("NowMillis() = %d before latch, want 0", c.NowMillis())
	}
	if got := c.Latch(); got != 40 || c.NowMillis() != 40 {
		t.Errorf("Latch() = %d, NowMillis() = %d", got, c.NowMillis())
	}
}

func TestRunKeepsNotes(t *testing.T) {
	m, _, p := newTestRack(t)
	m.Track(0).Engine.InsertAt(0, 0, 60, 100)
	m.Track(0).Engine.InsertAt(2, 0, 62, 100)
	m.Play()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if n := len(m.Track(0).Engine.Notes()); n != 2 {
		t.Errorf("%d notes after Run, want 2", n)
	}
	if n := len(p.get("main").filter(sequencer.CmdAllNotesOff)); n != 16 {
		t.Errorf("got %d all-notes-off on exit, want 16", n)
	}
}

func TestHandleNoteOff(t *testing.T) {
	m, _, p := newTestRack(t)
	m.Play()
	m.HandleNote(60, 100)
	m.HandleNote(60, 0)

	got, ok := m.Track(0).Engine.QueryNote(0, 0)
	if !ok || got.Pitch != 60 {
		t.Errorf("recorded note lost after note-off: %v, %v", got, ok)
	}
	if n := len(p.get("main").filter(sequencer.CmdNoteOff)); n != 1 {
		t.Errorf("%d note-off echoes, want 1", n)
	}
}

func TestPauseSendsSongPosition(t *testing.T) {
	m, clk, p := newTestRack(t)
	m.Track(1).PortName = "" // both tracks on the main port
	m.Play()
	clk.set(125)
	m.Tick()
	clk.set(250)
	m.Tick()

	m.Pause()
	if len(p.get("main").filter(sequencer.CmdSongPosition)) != 0 {
		t.Error("song position sent on pause")
	}

	m.Pause()
	spp := p.get("main").filter(sequencer.CmdSongPosition)
	if len(spp) != 1 || spp[0] != (midiMsg{0, sequencer.CmdSongPosition, 0, 1}) {
		t.Errorf("resume sent %v, want one song position 1", spp)
	}
	if !m.Track(1).Engine.Running() {
		t.Error("second track not resumed")
	}
}

func TestOpenPort(t *testing.T) {
	m, _, p := newTestRack(t)
	if err := m.OpenPort(""); err != nil {
		t.Errorf("OpenPort(default) = %v", err)
	}
	if err := m.OpenPort("missing"); err == nil {
		t.Error("OpenPort(missing) succeeded")
	}
	if err := m.OpenPort(""); err != nil {
		t.Error(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opens != 2 {
		t.Errorf("opener called %d times, want 2", p.opens)
	}
}

func TestPollIntervalOption(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PollMillis = 7
	if m := NewManager(cfg); m.poll != 7*time.Millisecond {
		t.Errorf("poll = %v from config", m.poll)
	}
	if m := NewManager(cfg, WithPollInterval(3*time.Millisecond)); m.poll != 3*time.Millisecond {
		t.Errorf("poll = %v with option", m.poll)
	}
}
