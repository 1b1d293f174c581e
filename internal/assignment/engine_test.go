package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign(t *testing.T) {
	t.Run("moves staff from pool into slot", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice", "bob"}, Slot{ID: "task-1"})

		err := ws.Assign("alice", "task-1")
		require.NoError(t, err)

		occ, err := ws.Occupants("task-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, occ)
		assert.Equal(t, []string{"bob"}, ws.Pool())
	})

	t.Run("unknown slot", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice"}, Slot{ID: "task-1"})

		err := ws.Assign("alice", "task-99")
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})

	t.Run("staff not in pool", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice"}, Slot{ID: "task-1"})

		err := ws.Assign("mallory", "task-1")
		assert.ErrorIs(t, err, ErrStaffNotFound)
	})

	t.Run("re-assigning same staff to same slot is a no-op", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice"}, Slot{ID: "task-1"})

		require.NoError(t, ws.Assign("alice", "task-1"))
		require.NoError(t, ws.Assign("alice", "task-1"))

		occ, err := ws.Occupants("task-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, occ, "no duplicate assignment records")
		assert.Empty(t, ws.Pool())
	})

	t.Run("single-occupant slot displaces current occupant to pool", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice", "bob"}, Slot{ID: "pos-1"})

		require.NoError(t, ws.Assign("alice", "pos-1"))
		require.NoError(t, ws.Assign("bob", "pos-1"))

		occ, err := ws.Occupants("pos-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, occ)
		assert.Equal(t, []string{"alice"}, ws.Pool())
	})

	t.Run("multi-occupant slot holds an ordered list", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice", "bob", "carol"}, Slot{ID: "shift-1", Multi: true})

		require.NoError(t, ws.Assign("alice", "shift-1"))
		require.NoError(t, ws.Assign("bob", "shift-1"))
		require.NoError(t, ws.Assign("carol", "shift-1"))

		occ, err := ws.Occupants("shift-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, occ)
		assert.Empty(t, ws.Pool())
	})
}

func TestUnassign(t *testing.T) {
	t.Run("returns occupant to pool", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice"}, Slot{ID: "task-1"})
		require.NoError(t, ws.Assign("alice", "task-1"))

		staff, err := ws.Unassign("task-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", staff)
		assert.Equal(t, []string{"alice"}, ws.Pool())
	})

	t.Run("empty slot", func(t *testing.T) {
		ws := NewWorkingSet(nil, Slot{ID: "task-1"})

		_, err := ws.Unassign("task-1")
		assert.ErrorIs(t, err, ErrSlotEmpty)
	})

	t.Run("unknown slot", func(t *testing.T) {
		ws := NewWorkingSet(nil)

		_, err := ws.Unassign("task-1")
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("removes a specific occupant from a roster", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice", "bob"}, Slot{ID: "shift-1", Multi: true})
		require.NoError(t, ws.Assign("alice", "shift-1"))
		require.NoError(t, ws.Assign("bob", "shift-1"))

		require.NoError(t, ws.Withdraw("shift-1", "alice"))

		occ, err := ws.Occupants("shift-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, occ)
		assert.Equal(t, []string{"alice"}, ws.Pool())
	})

	t.Run("occupant not on roster", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice"}, Slot{ID: "shift-1", Multi: true})

		err := ws.Withdraw("shift-1", "alice")
		assert.ErrorIs(t, err, ErrStaffNotFound)
	})
}

func TestReorder(t *testing.T) {
	t.Run("reordering keeps membership and pool unchanged", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice", "bob", "carol"}, Slot{ID: "shift-1", Multi: true})
		require.NoError(t, ws.Assign("alice", "shift-1"))
		require.NoError(t, ws.Assign("bob", "shift-1"))

		require.NoError(t, ws.Reorder("shift-1", []string{"bob", "alice"}))

		occ, err := ws.Occupants("shift-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "alice"}, occ)
		assert.Equal(t, []string{"carol"}, ws.Pool())
		assert.Equal(t, 3, ws.Total())
	})

	t.Run("reorder cannot change membership", func(t *testing.T) {
		ws := NewWorkingSet([]string{"alice", "bob"}, Slot{ID: "shift-1", Multi: true})
		require.NoError(t, ws.Assign("alice", "shift-1"))

		err := ws.Reorder("shift-1", []string{"bob"})
		assert.ErrorIs(t, err, ErrStaffNotFound)
	})
}

// Conservation: staff are never lost or duplicated through any sequence
// of assigns, unassigns, and withdrawals.
func TestConservation(t *testing.T) {
	ws := NewWorkingSet(
		[]string{"alice", "bob", "carol", "dave"},
		Slot{ID: "task-1"},
		Slot{ID: "pos-1"},
		Slot{ID: "shift-1", Multi: true},
	)
	require.Equal(t, 4, ws.Total())

	require.NoError(t, ws.Assign("alice", "task-1"))
	require.NoError(t, ws.Assign("bob", "shift-1"))
	require.NoError(t, ws.Assign("carol", "shift-1"))
	require.NoError(t, ws.Assign("dave", "pos-1"))
	assert.Equal(t, 4, ws.Total())

	_, err := ws.Unassign("task-1")
	require.NoError(t, err)
	require.NoError(t, ws.Withdraw("shift-1", "bob"))
	assert.Equal(t, 4, ws.Total())

	// Displacement on a single-occupant slot also conserves.
	require.NoError(t, ws.Assign("alice", "pos-1"))
	assert.Equal(t, 4, ws.Total())
	assert.ElementsMatch(t, []string{"bob", "dave"}, ws.Pool())
}

// A staff member assigned to a shift no longer appears in the available
// pool; unassigning returns them. This is the canonical roster round-trip.
func TestRosterRoundTrip(t *testing.T) {
	pool := []string{"sarah-chen", "marcus-boone", "luis-herrera"}
	ws := NewWorkingSet(pool, Slot{ID: "saturday-dinner", Multi: true})

	require.NoError(t, ws.Assign("sarah-chen", "saturday-dinner"))
	assert.NotContains(t, ws.Pool(), "sarah-chen")

	occ, err := ws.Occupants("saturday-dinner")
	require.NoError(t, err)
	assert.Contains(t, occ, "sarah-chen")

	require.NoError(t, ws.Withdraw("saturday-dinner", "sarah-chen"))
	assert.Contains(t, ws.Pool(), "sarah-chen")

	occ, err = ws.Occupants("saturday-dinner")
	require.NoError(t, err)
	assert.NotContains(t, occ, "sarah-chen")
}
