package sequencer

import "sync"

// beforeFirstStep is the position after Start, so the first advance lands on 0
const beforeFirstStep = -1

// Engine is a polled step sequencer with a fixed-capacity note store.
//
// All methods are safe to call from several goroutines. Callbacks run
// outside the engine lock, so handlers may call back into the engine.
type Engine struct {
	mu     sync.Mutex // guards everything below
	stepMu sync.Mutex // serializes step advance and dispatch

	sink      MIDISink
	onStep    StepHandler
	clock     Clock
	sendClock bool

	slots   []slot
	scratch []Note // trigger buffer, same capacity as slots

	running  bool
	muteNext bool // skip the next trigger after a live recording
	tempo    int
	steps    int
	position int

	sixteenth   uint32
	clockPeriod uint32
	shuffle     uint32
	nextBeat    uint32
	nextClock   uint32
}

// Option configures an Engine at construction
type Option func(*options)

type options struct {
	capacity  int
	sink      MIDISink
	onStep    StepHandler
	clock     Clock
	sendClock bool
}

// WithCapacity sets the number of storable notes
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithMemory sizes the store from a byte budget
func WithMemory(bytes int) Option {
	return func(o *options) {
		o.capacity = bytes / NoteSize
	}
}

// WithMIDISink binds the MIDI output
func WithMIDISink(s MIDISink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithStepHandler binds the step callback
func WithStepHandler(h StepHandler) Option {
	return func(o *options) {
		o.onStep = h
	}
}

// WithClock overrides the default system clock
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithHost binds sink, step handler and clock from one value
func WithHost(h Host) Option {
	return func(o *options) {
		o.sink = h
		o.onStep = h
		o.clock = h
	}
}

// WithClockOutput enables or disables MIDI clock ticks (on by default)
func WithClockOutput(enabled bool) Option {
	return func(o *options) {
		o.sendClock = enabled
	}
}

// New allocates an engine. The note store is sized once here and never
// grows. The engine starts stopped with the default configuration.
func New(opts ...Option) *Engine {
	o := options{
		capacity:  DefaultMemory / NoteSize,
		sendClock: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity < 1 {
		o.capacity = 1
	}
	if o.clock == nil {
		o.clock = NewSystemClock()
	}

	e := &Engine{
		sink:      o.sink,
		onStep:    o.onStep,
		clock:     o.clock,
		sendClock: o.sendClock,
		slots:     make([]slot, o.capacity),
		scratch:   make([]Note, 0, o.capacity),
		position:  beforeFirstStep,
	}
	e.Begin(DefaultConfig())
	return e
}

// Begin applies tempo, step count and shuffle. A zero tempo or step count
// keeps the default.
func (e *Engine) Begin(cfg Config) {
	if cfg.Tempo == 0 {
		cfg.Tempo = DefaultTempo
	}
	if cfg.Steps == 0 {
		cfg.Steps = DefaultSteps
	}
	e.SetTempo(cfg.Tempo)
	e.SetSteps(cfg.Steps)
	e.SetShuffle(cfg.Shuffle)
}

// SetMIDISink replaces the MIDI output (nil silences it)
func (e *Engine) SetMIDISink(s MIDISink) {
	e.mu.Lock()
	e.sink = s
	e.mu.Unlock()
}

// SetStepHandler replaces the step callback (nil disables it)
func (e *Engine) SetStepHandler(h StepHandler) {
	e.mu.Lock()
	e.onStep = h
	e.mu.Unlock()
}

// SetClock replaces the time source; nil restores a system clock
func (e *Engine) SetClock(c Clock) {
	if c == nil {
		c = NewSystemClock()
	}
	e.mu.Lock()
	e.clock = c
	e.mu.Unlock()
}

// now must be called with e.mu held
func (e *Engine) now() uint32 {
	return e.clock.NowMillis()
}
