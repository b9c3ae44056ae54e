// Package journal persists an audit trail of control cycles and the
// transfers they dispatched in a local SQLite database. The controller
// never reads the journal back during routing; it exists for operators.
package journal

import "time"

// Cycle is one recorded control cycle.
type Cycle struct {
	// ID is the cycle's UUID assigned by the control loop.
	ID string

	// Outcome is empty while the cycle is in flight, then one of the
	// control loop's outcome strings.
	Outcome string

	StartedAt   time.Time
	CompletedAt *time.Time
}

// Transfer is one recorded slot or tank transfer.
type Transfer struct {
	ID      int64
	CycleID string

	// Kind is item, fluid, or config-return.
	Kind string

	// Source and Dest are node addresses.
	Source string
	Dest   string

	// Resource is the item or fluid identity moved.
	Resource string

	// Amount is the item count or fluid volume.
	Amount int

	CreatedAt time.Time
}
