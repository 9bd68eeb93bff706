package ledger

import (
	"context"

	"github.com/looplab/fsm"
)

// Spot lifecycle states and events. The only legal transitions are
// free -> occupied (check-in) and occupied -> free (check-out).
const (
	stateFree     = "free"
	stateOccupied = "occupied"

	eventOccupy = "occupy"
	eventFree   = "free"
)

// spotMachines tracks one state machine per spot. A rejected transition is
// exactly the silent no-op outcome of the corresponding ledger operation.
// Access is guarded by the owning Service's mutex.
type spotMachines struct {
	machines map[int]*fsm.FSM
}

func newSpotMachines() *spotMachines {
	return &spotMachines{
		machines: make(map[int]*fsm.FSM),
	}
}

// add registers a machine for spotID at the given occupancy.
func (s *spotMachines) add(spotID int, occupied bool) {
	initial := stateFree
	if occupied {
		initial = stateOccupied
	}

	s.machines[spotID] = fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: eventOccupy, Src: []string{stateFree}, Dst: stateOccupied},
			{Name: eventFree, Src: []string{stateOccupied}, Dst: stateFree},
		},
		fsm.Callbacks{},
	)
}

// can reports whether event is legal for spotID. Unknown spots allow
// nothing.
func (s *spotMachines) can(spotID int, event string) bool {
	m, ok := s.machines[spotID]
	if !ok {
		return false
	}
	return m.Can(event)
}

// trigger fires event for spotID. Callers check can first; trigger after a
// positive can cannot fail while the Service mutex is held.
func (s *spotMachines) trigger(ctx context.Context, spotID int, event string) error {
	m, ok := s.machines[spotID]
	if !ok {
		return fsm.UnknownEventError{Event: event}
	}
	return m.Event(ctx, event)
}
