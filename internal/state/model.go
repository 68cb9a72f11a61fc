// Package state implements the State Store (C1): durable, consistent
// per-shuttle state with compare-and-set updates.
package state

// Status is a shuttle's operational state.
type Status string

const (
	StatusUnknown      Status = "UNKNOWN"
	StatusFree         Status = "FREE"
	StatusBusy         Status = "BUSY"
	StatusMoving       Status = "MOVING"
	StatusLoading      Status = "LOADING"
	StatusUnloading    Status = "UNLOADING"
	StatusCharging     Status = "CHARGING"
	StatusLowBattery   Status = "LOW_BATTERY"
	StatusNotReady     Status = "NOT_READY"
	StatusAwaitingMRCD Status = "AWAITING_MRCD"
	StatusError        Status = "ERROR"
)

// Shuttle identifies a configured device by its host and command port,
// established once at configuration time.
type Shuttle struct {
	ID          string
	Host        string
	CommandPort int
}

// ShuttleState is one durable record per shuttle_id (spec §3).
//
// Invariants enforced by callers through Store.Update, not by this type
// itself: status ∈ {BUSY, LOADING, UNLOADING, MOVING} implies
// CurrentCommand is set; status = ERROR implies ErrorCode is set; LastSeen
// never decreases across an Update.
type ShuttleState struct {
	ShuttleID     string `json:"shuttle_id"`
	Status        Status `json:"status"`
	CurrentCommand string `json:"current_command,omitempty"`
	ExternalID    string `json:"external_id,omitempty"`

	LastMessageSentToWMS     string `json:"last_message_sent_to_wms,omitempty"`
	LastMessageReceivedFromWMS string `json:"last_message_received_from_wms,omitempty"`

	BatteryLevel    string `json:"battery_level,omitempty"`
	LocationData    string `json:"location_data,omitempty"`
	PalletCountData string `json:"pallet_count_data,omitempty"`
	WDHHours        int    `json:"wdh_hours,omitempty"`
	WLHHours        int    `json:"wlh_hours,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`

	LastSeen float64 `json:"last_seen"`

	// version is the CAS token; bumped on every successful Update. It is
	// serialized so a RedisStore can detect a concurrent writer even across
	// process restarts, but callers never read or set it directly.
	Version int64 `json:"version"`
}

// Clone returns a deep copy so mutators never retain a reference that could
// be concurrently mutated by another goroutine after the record has been
// written back.
func (s ShuttleState) Clone() ShuttleState {
	return s
}
