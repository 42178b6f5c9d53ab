package domain

import "time"

// EventKind labels an audit event.
type EventKind string

const (
	EventDeposit           EventKind = "deposit"
	EventWithdraw          EventKind = "withdraw"
	EventOptionPurchase    EventKind = "option_purchase"
	EventRollover          EventKind = "rollover"
	EventPause             EventKind = "pause"
	EventUnpause           EventKind = "unpause"
	EventSetLimitPrice     EventKind = "set_limit_price"
	EventSetBufferTime     EventKind = "set_buffer_time"
	EventMigrationSchedule EventKind = "migration_schedule"
	EventMigrationExecute  EventKind = "migration_execute"
)

// Event is an audit record emitted after every state change. It is consumed
// by off-core indexing and monitoring, never by the vault itself.
// Amount fields use strings to avoid float precision issues downstream.
type Event struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	Timestamp   time.Time `json:"ts"`
	Account     string    `json:"account,omitempty"`
	Receiver    string    `json:"receiver,omitempty"`
	Assets      string    `json:"assets,omitempty"`
	Shares      string    `json:"shares,omitempty"`
	Settlement  string    `json:"settlement,omitempty"`
	Price       string    `json:"price,omitempty"`
	PrimaryPre  string    `json:"primary_pre,omitempty"`
	PrimaryPost string    `json:"primary_post,omitempty"`
	SettlePre   string    `json:"settle_pre,omitempty"`
	SettlePost  string    `json:"settle_post,omitempty"`
	WindowStart int64     `json:"window_start,omitempty"`
	WindowEnd   int64     `json:"window_end,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// EventRecord bundles an event with its audit-log index.
type EventRecord struct {
	Index uint64
	Event Event
}
