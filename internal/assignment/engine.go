// Package assignment implements the pure move engine shared by checklist
// task assignment, setup sheet positions, and shift rosters. A working set
// holds an available pool of staff and a number of slots; the engine moves
// staff between pool and slots without touching storage. Callers build the
// working set from repository state, apply moves, and persist the result
// inside a single transaction.
package assignment

import "errors"

var (
	// ErrSlotNotFound is returned when the destination slot is not part
	// of the working set.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrStaffNotFound is returned when the staff member is not in the
	// available pool.
	ErrStaffNotFound = errors.New("staff not in available pool")

	// ErrSlotEmpty is returned when unassigning a slot with no occupant.
	ErrSlotEmpty = errors.New("slot has no occupant")
)

// Slot is a destination a staff member can occupy. Single-occupant slots
// (checklist tasks, setup positions) hold at most one staff member; an
// incoming assignment displaces the current occupant back to the pool.
// Multi-occupant slots (shifts) hold an unbounded ordered list.
type Slot struct {
	ID        string
	Multi     bool
	Occupants []string
}

// WorkingSet is the in-memory state the engine operates on: one ordered
// available pool plus the slots of the current view.
type WorkingSet struct {
	pool  []string
	slots map[string]*Slot
	order []string
}

// NewWorkingSet builds a working set from an available pool and slots.
// Slot occupant lists are copied; the engine never aliases caller state.
func NewWorkingSet(pool []string, slots ...Slot) *WorkingSet {
	ws := &WorkingSet{
		pool:  append([]string(nil), pool...),
		slots: make(map[string]*Slot, len(slots)),
		order: make([]string, 0, len(slots)),
	}
	for i := range slots {
		s := slots[i]
		s.Occupants = append([]string(nil), s.Occupants...)
		ws.slots[s.ID] = &s
		ws.order = append(ws.order, s.ID)
	}
	return ws
}

// Assign moves a staff member from the available pool into a slot.
// Assigning a staff member to a slot they already occupy is a no-op.
// On a single-occupant slot the displaced occupant returns to the pool.
func (ws *WorkingSet) Assign(staffID, slotID string) error {
	slot, ok := ws.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}

	// Idempotence: re-running the same assignment changes nothing.
	for _, occ := range slot.Occupants {
		if occ == staffID {
			return nil
		}
	}

	if !ws.removeFromPool(staffID) {
		return ErrStaffNotFound
	}

	if !slot.Multi && len(slot.Occupants) > 0 {
		ws.pool = append(ws.pool, slot.Occupants[0])
		slot.Occupants = slot.Occupants[:0]
	}

	slot.Occupants = append(slot.Occupants, staffID)
	return nil
}

// Unassign clears a single-occupant slot, returning the staff member to
// the available pool.
func (ws *WorkingSet) Unassign(slotID string) (string, error) {
	slot, ok := ws.slots[slotID]
	if !ok {
		return "", ErrSlotNotFound
	}
	if len(slot.Occupants) == 0 {
		return "", ErrSlotEmpty
	}

	staffID := slot.Occupants[len(slot.Occupants)-1]
	slot.Occupants = slot.Occupants[:len(slot.Occupants)-1]
	ws.pool = append(ws.pool, staffID)
	return staffID, nil
}

// Withdraw removes a specific occupant from a multi-occupant slot and
// returns them to the available pool.
func (ws *WorkingSet) Withdraw(slotID, staffID string) error {
	slot, ok := ws.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}

	for i, occ := range slot.Occupants {
		if occ == staffID {
			slot.Occupants = append(slot.Occupants[:i], slot.Occupants[i+1:]...)
			ws.pool = append(ws.pool, staffID)
			return nil
		}
	}
	return ErrStaffNotFound
}

// Reorder changes the display order of a slot's occupants. The membership
// must be unchanged; reordering alone is not a state change worth
// persisting, so the engine records the new order and reports whether
// anything else moved (always false).
func (ws *WorkingSet) Reorder(slotID string, occupants []string) error {
	slot, ok := ws.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}

	if len(occupants) != len(slot.Occupants) {
		return ErrStaffNotFound
	}
	current := make(map[string]bool, len(slot.Occupants))
	for _, occ := range slot.Occupants {
		current[occ] = true
	}
	for _, occ := range occupants {
		if !current[occ] {
			return ErrStaffNotFound
		}
	}

	slot.Occupants = append(slot.Occupants[:0], occupants...)
	return nil
}

// Pool returns the current available pool in order
func (ws *WorkingSet) Pool() []string {
	return append([]string(nil), ws.pool...)
}

// Occupants returns a slot's occupants in order
func (ws *WorkingSet) Occupants(slotID string) ([]string, error) {
	slot, ok := ws.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return append([]string(nil), slot.Occupants...), nil
}

// SlotIDs returns the slot IDs in the order they were added
func (ws *WorkingSet) SlotIDs() []string {
	return append([]string(nil), ws.order...)
}

// Total returns the number of staff tracked across pool and slots.
// Moves never change this count.
func (ws *WorkingSet) Total() int {
	n := len(ws.pool)
	for _, slot := range ws.slots {
		n += len(slot.Occupants)
	}
	return n
}

func (ws *WorkingSet) removeFromPool(staffID string) bool {
	for i, id := range ws.pool {
		if id == staffID {
			ws.pool = append(ws.pool[:i], ws.pool[i+1:]...)
			return true
		}
	}
	return false
}
