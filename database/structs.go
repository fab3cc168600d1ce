package database

import "prodmon/engine"

// ProductionSession is the persisted aggregate: shift inputs, the
// metrics snapshot they produced, and the ordered hourly table. ID is
// zero until the store assigns one on first save.
type ProductionSession struct {
	ID int64 `json:"id,omitempty"`
	engine.ShiftInput
	Metrics   engine.Metrics    `json:"metrics"`
	TimeSlots []engine.TimeSlot `json:"time_slots"`
	CreatedAt string            `json:"created_at,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}
