package run

import (
	"context"
	"log/slog"
	"sync"

	"backboard/internal/domain"
	"backboard/internal/engine"
)

// SlotID names one of the two comparison slots.
type SlotID string

const (
	SlotA SlotID = "A"
	SlotB SlotID = "B"
)

// Default slot labels; the presentation layer may overwrite them at any time.
const (
	DefaultLabelA = "Portfolio A"
	DefaultLabelB = "Portfolio B"
)

// EventType classifies coordinator events.
type EventType string

const (
	EventRunChanged   EventType = "run_changed"
	EventModeChanged  EventType = "mode_changed"
	EventLabelChanged EventType = "label_changed"
	EventReset        EventType = "reset"
)

// Event is the wire format pushed to subscribers on every observable
// transition of either slot or the display mode.
type Event struct {
	Type   EventType          `json:"type"`
	Slot   SlotID             `json:"slot,omitempty"`
	RunID  string             `json:"runId,omitempty"`
	Status Status             `json:"status,omitempty"`
	Mode   domain.DisplayMode `json:"mode"`
	Label  string             `json:"label,omitempty"`
	Err    string             `json:"error,omitempty"`
}

// SlotView is one slot's label plus its orchestrator snapshot.
type SlotView struct {
	Label string `json:"label"`
	Snapshot
}

// View is a full copy of the coordinator state for the presentation layer.
type View struct {
	Mode domain.DisplayMode `json:"mode"`
	A    SlotView           `json:"a"`
	B    SlotView           `json:"b"`
}

// Coordinator owns the two run orchestrators and the display mode. It
// enforces no ordering between the slots at the data level; the interactive
// UI hides slot B's trigger until slot A succeeds, and the bootstrap-restore
// path deliberately fires both concurrently. It does auto-promote the
// display mode to compare the instant both slots hold results.
type Coordinator struct {
	log *slog.Logger
	a   *Orchestrator
	b   *Orchestrator

	mu     sync.Mutex
	mode   domain.DisplayMode
	labels map[SlotID]string

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewCoordinator creates a Coordinator in single mode with idle slots.
func NewCoordinator(runner engine.Runner, log *slog.Logger) *Coordinator {
	c := &Coordinator{
		log:  log,
		mode: domain.ModeSingle,
		labels: map[SlotID]string{
			SlotA: DefaultLabelA,
			SlotB: DefaultLabelB,
		},
		subs: make(map[int]chan Event),
	}
	c.a = NewOrchestrator(runner, log.With("slot", string(SlotA)), func(s Snapshot) {
		c.handleChange(SlotA, s)
	})
	c.b = NewOrchestrator(runner, log.With("slot", string(SlotB)), func(s Snapshot) {
		c.handleChange(SlotB, s)
	})
	return c
}

// RunA starts an execution in slot A. Always permitted; this is also the
// single-mode run path.
func (c *Coordinator) RunA(ctx context.Context, cfg domain.BacktestConfig) {
	c.a.Start(ctx, cfg)
}

// RunB starts an execution in slot B. The coordinator does not reject an
// early call; the interactive UI keeps the trigger hidden until slot A has a
// result, and restored links bypass that gate on purpose.
func (c *Coordinator) RunB(ctx context.Context, cfg domain.BacktestConfig) {
	if c.a.Snapshot().Status != StatusSucceeded {
		c.log.Info("slot B started before slot A produced a result")
	}
	c.b.Start(ctx, cfg)
}

// PromoteToCompare switches the display to compare mode without starting
// slot B. The single-mode result already lives in slot A, so promotion is a
// mode change only.
func (c *Coordinator) PromoteToCompare() {
	c.setMode(domain.ModeCompare)
}

// SetMode forces the display mode. Used by the bootstrap restorer, which sets
// compare immediately rather than waiting for either run to resolve.
func (c *Coordinator) SetMode(mode domain.DisplayMode) {
	c.setMode(mode)
}

// Reset clears both slots and returns the display to single mode.
func (c *Coordinator) Reset() {
	c.a.Clear()
	c.b.Clear()
	c.setMode(domain.ModeSingle)
	c.publish(Event{Type: EventReset, Mode: domain.ModeSingle})
}

// SetLabel renames a slot. Run state is unaffected.
func (c *Coordinator) SetLabel(slot SlotID, label string) {
	c.mu.Lock()
	c.labels[slot] = label
	mode := c.mode
	c.mu.Unlock()

	c.publish(Event{Type: EventLabelChanged, Slot: slot, Label: label, Mode: mode})
}

// Mode returns the current display mode.
func (c *Coordinator) Mode() domain.DisplayMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Slot returns the snapshot of one slot.
func (c *Coordinator) Slot(slot SlotID) Snapshot {
	if slot == SlotB {
		return c.b.Snapshot()
	}
	return c.a.Snapshot()
}

// View returns a full copy of the coordinator state.
func (c *Coordinator) View() View {
	c.mu.Lock()
	mode := c.mode
	labelA := c.labels[SlotA]
	labelB := c.labels[SlotB]
	c.mu.Unlock()

	return View{
		Mode: mode,
		A:    SlotView{Label: labelA, Snapshot: c.a.Snapshot()},
		B:    SlotView{Label: labelB, Snapshot: c.b.Snapshot()},
	}
}

// Subscribe returns a channel receiving coordinator events. bufSize controls
// the channel buffer; events to slow consumers are dropped.
func (c *Coordinator) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	c.subsMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Coordinator) Unsubscribe(id int) {
	c.subsMu.Lock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

// handleChange reacts to a slot transition: publish the event, then check the
// auto-promotion rule. The instant slot B succeeds while slot A already
// holds a result, the display switches to compare. A slot B failure leaves
// the mode untouched.
func (c *Coordinator) handleChange(slot SlotID, snap Snapshot) {
	c.publish(Event{
		Type:   EventRunChanged,
		Slot:   slot,
		RunID:  snap.RunID,
		Status: snap.Status,
		Mode:   c.Mode(),
		Err:    snap.Err,
	})

	if slot == SlotB && snap.Status == StatusSucceeded {
		if c.a.Snapshot().Status == StatusSucceeded {
			c.setMode(domain.ModeCompare)
		}
	}
}

func (c *Coordinator) setMode(mode domain.DisplayMode) {
	c.mu.Lock()
	if c.mode == mode {
		c.mu.Unlock()
		return
	}
	c.mode = mode
	c.mu.Unlock()

	c.log.Info("display mode changed", "mode", string(mode))
	c.publish(Event{Type: EventModeChanged, Mode: mode})
}

// publish sends an event to all subscribers non-blocking (drop on full).
func (c *Coordinator) publish(e Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer, drop the event.
		}
	}
}
