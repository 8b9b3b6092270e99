package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-sixteenstep/debug"

	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// DeviceManager handles hot-plug detection of keyboards and merges their
// notes into one stream
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	notes       chan NoteEvent
	forwarders  sync.WaitGroup
	pollRate    time.Duration

	filter  string // lowercase substring a port name must contain, empty = any
	channel int    // keyboard channel filter, -1 = omni
	open    func(id string, in drivers.In) (Controller, error)
}

// NewDeviceManager watches input ports whose name contains filter
// (case-insensitive). channel is 1-16, or 0 for omni.
func NewDeviceManager(filter string, channel int) *DeviceManager {
	dm := &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		notes:       make(chan NoteEvent, 64),
		pollRate:    time.Second,
		filter:      strings.ToLower(filter),
		channel:     channel - 1,
	}
	dm.open = func(id string, in drivers.In) (Controller, error) {
		return NewKeyboardInput(id, in, dm.channel)
	}
	return dm
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Notes returns the merged note stream of every connected keyboard
func (dm *DeviceManager) Notes() <-chan NoteEvent {
	return dm.notes
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			dm.forwarders.Wait()
			close(dm.events)
			close(dm.notes)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	inPorts, _, err := listPorts(DriverTimeout)
	if err != nil {
		// driver is hung, skip this scan
		debug.LogEvery(10, "midi", "scan: %v", err)
		return
	}

	ports := make(map[string]drivers.In)
	for _, in := range inPorts {
		if dm.matches(in.String()) {
			ports[in.String()] = in
		}
	}
	dm.apply(ports)
}

// apply connects new ports and drops vanished ones
func (dm *DeviceManager) apply(ports map[string]drivers.In) {
	for id, in := range ports {
		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := dm.open(id, in)
		if err != nil {
			debug.Log("midi", "connect %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()

		dm.forwarders.Add(1)
		go dm.forward(c)

		debug.Log("midi", "keyboard connected: %s", id)
		dm.emit(DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
	}

	// Check for disconnects
	dm.mu.Lock()
	var removed []string
	for id, c := range dm.controllers {
		if _, ok := ports[id]; !ok {
			c.Close()
			delete(dm.controllers, id)
			removed = append(removed, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range removed {
		debug.Log("midi", "keyboard disconnected: %s", id)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

// emit drops events nobody is reading
func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

// forward copies one controller's notes into the merged stream until the
// controller closes
func (dm *DeviceManager) forward(c Controller) {
	defer dm.forwarders.Done()
	for ev := range c.NoteEvents() {
		select {
		case dm.notes <- ev:
		default:
		}
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func (dm *DeviceManager) matches(name string) bool {
	name = strings.ToLower(name)
	if strings.Contains(name, "through") {
		return false
	}
	return dm.filter == "" || strings.Contains(name, dm.filter)
}
