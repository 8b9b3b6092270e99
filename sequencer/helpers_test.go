package sequencer

import "sync"

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

type recorder struct {
	mu   sync.Mutex
	msgs []midiMsg
}

func (r *recorder) EmitMIDI(channel, command, arg1, arg2 uint8) {
	r.mu.Lock()
	r.msgs = append(r.msgs, midiMsg{channel, command, arg1, arg2})
	r.mu.Unlock()
}

func (r *recorder) take() []midiMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

func (r *recorder) count(command uint8) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.command == command {
			n++
		}
	}
	return n
}

// newTestEngine returns a stopped engine at 120 BPM on a fake clock at 0
func newTestEngine(steps int, opts ...Option) (*Engine, *fakeClock, *recorder) {
	clk := &fakeClock{}
	rec := &recorder{}
	opts = append([]Option{WithClock(clk), WithMIDISink(rec)}, opts...)
	e := New(opts...)
	e.Begin(Config{Tempo: 120, Steps: steps})
	return e, clk, rec
}
