// Package shuttleproto defines the gateway-to-shuttle command vocabulary: the
// fixed set of commands a shuttle accepts (spec §6.1), the bypass set, and
// the base priority table. It has no network or state dependencies so both the transport
// and dispatch packages can import it without a cycle.
package shuttleproto

// Command is a token the gateway sends to a shuttle.
type Command string

const (
	CommandPalletIn  Command = "PALLET_IN"
	CommandPalletOut Command = "PALLET_OUT"
	CommandFIFO      Command = "FIFO"
	CommandFILO      Command = "FILO"
	CommandStackIn   Command = "STACK_IN"
	CommandStackOut  Command = "STACK_OUT"
	CommandHome      Command = "HOME"
	CommandCount     Command = "COUNT"
	CommandStatus    Command = "STATUS"
	CommandBattery   Command = "BATTERY"
	CommandWDH       Command = "WDH"
	CommandWLH       Command = "WLH"
	CommandMRCD      Command = "MRCD"
)

// BypassSet is the set of commands executed immediately under the
// per-shuttle mutex regardless of queue contents or current status
// (spec §4.5).
var BypassSet = map[Command]bool{
	CommandHome:    true,
	CommandStatus:  true,
	CommandMRCD:    true,
	CommandBattery: true,
	CommandWDH:     true,
	CommandWLH:     true,
}

// IsBypass reports whether cmd is executed immediately rather than queued.
func IsBypass(cmd Command) bool {
	return BypassSet[cmd]
}

// RequiresNumericParam reports whether cmd requires a non-empty numeric
// params string (FIFO-NNN / FILO-NNN).
func RequiresNumericParam(cmd Command) bool {
	return cmd == CommandFIFO || cmd == CommandFILO
}

// priorities is the base priority table from the original implementation's
// command_priorities dict (lower sorts first / more urgent). Commands not
// present here (there are none left unlisted among the thirteen defined
// above) would fall back to 10.
var priorities = map[Command]int{
	CommandHome:      1,
	CommandStatus:    2,
	CommandBattery:   3,
	CommandMRCD:      4,
	CommandPalletOut: 5,
	CommandPalletIn:  6,
	CommandStackOut:  7,
	CommandStackIn:   8,
	CommandFIFO:      9,
	CommandFILO:      10,
	CommandCount:     11,
	CommandWDH:       12,
	CommandWLH:       13,
}

const defaultPriority = 10

// BasePriority returns cmd's table priority, or defaultPriority if cmd is
// not in the table.
func BasePriority(cmd Command) int {
	if p, ok := priorities[cmd]; ok {
		return p
	}
	return defaultPriority
}

// ResolvePriority combines the command's base priority with a
// caller-supplied priority by taking the minimum: a caller can make a
// command more urgent than its table priority, but never less urgent,
// mirroring the original implementation's `min(table_priority, caller_priority)`.
func ResolvePriority(cmd Command, callerPriority int) int {
	base := BasePriority(cmd)
	if callerPriority < base {
		return callerPriority
	}
	return base
}
