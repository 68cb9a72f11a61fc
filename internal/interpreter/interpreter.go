// Package interpreter implements the Message Interpreter (C4): it parses a
// shuttle-originated line into a state mutation plus, when applicable, a
// state machine trigger (spec §4.4).
package interpreter

import (
	"strconv"
	"strings"

	"go.corp.example.com/shuttlegateway/internal/state"
	"go.corp.example.com/shuttlegateway/internal/statemachine"
)

// statusByValue maps the value half of an inbound STATUS=<v> line to a
// Status. CARGO is an alias for BUSY (the shuttle reports "carrying cargo"
// rather than a generic busy token); anything else not in this table maps
// to UNKNOWN rather than being rejected.
var statusByValue = map[string]state.Status{
	"FREE":        state.StatusFree,
	"CARGO":       state.StatusBusy,
	"BUSY":        state.StatusBusy,
	"NOT_READY":   state.StatusNotReady,
	"MOVING":      state.StatusMoving,
	"LOADING":     state.StatusLoading,
	"UNLOADING":   state.StatusUnloading,
	"CHARGING":    state.StatusCharging,
	"LOW_BATTERY": state.StatusLowBattery,
}

// terminal status values imply nothing is currently in flight, so a
// STATUS= line reporting one of them clears current_command.
func isTerminalStatus(s state.Status) bool {
	return s == state.StatusFree || s == state.StatusNotReady || s == state.StatusUnknown
}

// startedTriggers maps a substring found in an "<OP>_STARTED" line to the
// state machine trigger for that operation.
var startedTriggers = []struct {
	substr  string
	trigger statemachine.Trigger
}{
	{"PALLET_IN", statemachine.TriggerPalletIn},
	{"PALLET_OUT", statemachine.TriggerPalletOut},
	{"FIFO", statemachine.TriggerFIFO},
	{"FILO", statemachine.TriggerFILO},
	{"STACK_IN", statemachine.TriggerStackIn},
	{"STACK_OUT", statemachine.TriggerStackOut},
	{"HOME", statemachine.TriggerHome},
}

// LowBatteryThreshold is the default percentage below which BATTERY=<v>
// fires a BATTERY_LOW trigger (spec §6.5); internal/config exposes this as
// a tunable and callers pass it into Interpret explicitly rather than
// relying on a package-level default, so a single process can special-case
// test shuttles if it ever needs to.
const LowBatteryThreshold = 20.0

// Result is the outcome of interpreting one inbound line.
type Result struct {
	// Mutate applies the line's effect to a ShuttleState. Always non-nil.
	Mutate state.Mutator
	// Trigger is the state machine trigger to apply, if any.
	Trigger statemachine.Trigger
	// HasTrigger reports whether Trigger is set.
	HasTrigger bool
	// BatteryPercent and HasBatteryPercent carry a BATTERY=<v> line's
	// parsed percentage, so a caller can feed a gauge without re-parsing
	// the raw string itself.
	BatteryPercent    float64
	HasBatteryPercent bool
}

// Interpret parses a single shuttle-emitted line per spec §4.4.
func Interpret(line string, lowBatteryThreshold float64) Result {
	var (
		trigger           statemachine.Trigger
		hasTrigger        bool
		mutations         []func(*state.ShuttleState)
		batteryPercent    float64
		hasBatteryPercent bool
	)

	setTrigger := func(t statemachine.Trigger) {
		trigger = t
		hasTrigger = true
	}
	clearCurrentCommand := func() {
		mutations = append(mutations, func(s *state.ShuttleState) { s.CurrentCommand = "" })
	}

	switch {
	case strings.HasSuffix(line, "_STARTED"):
		matched := false
		for _, st := range startedTriggers {
			if strings.Contains(line, st.substr) {
				setTrigger(st.trigger)
				matched = true
				break
			}
		}
		if !matched {
			mutations = append(mutations, func(s *state.ShuttleState) { s.Status = state.StatusBusy })
		}

	case strings.HasSuffix(line, "_DONE"):
		setTrigger(statemachine.TriggerDone)

	case strings.HasSuffix(line, "_ABORT"):
		mutations = append(mutations, func(s *state.ShuttleState) { s.ErrorCode = line })
		setTrigger(statemachine.TriggerError)

	case strings.HasPrefix(line, "LOCATION="):
		value := strings.SplitN(line, "=", 2)[1]
		mutations = append(mutations, func(s *state.ShuttleState) { s.LocationData = value })
		setTrigger(statemachine.TriggerDone)
		clearCurrentCommand()

	case strings.HasPrefix(line, "COUNT_") && strings.Contains(line, "="):
		mutations = append(mutations, func(s *state.ShuttleState) { s.PalletCountData = line })
		setTrigger(statemachine.TriggerDone)
		clearCurrentCommand()

	case strings.HasPrefix(line, "STATUS="):
		value := strings.ToUpper(strings.SplitN(line, "=", 2)[1])
		resolved, ok := statusByValue[value]
		if !ok {
			resolved = state.StatusUnknown
		}
		mutations = append(mutations, func(s *state.ShuttleState) { s.Status = resolved })
		if isTerminalStatus(resolved) {
			clearCurrentCommand()
		}

	case strings.HasPrefix(line, "BATTERY="):
		value := strings.SplitN(line, "=", 2)[1]
		mutations = append(mutations, func(s *state.ShuttleState) { s.BatteryLevel = value })
		if percent, ok := parseBatteryPercent(value); ok {
			batteryPercent, hasBatteryPercent = percent, true
			if percent < lowBatteryThreshold {
				setTrigger(statemachine.TriggerBatteryLow)
			}
		}

	case strings.HasPrefix(line, "WDH="):
		if n, err := strconv.Atoi(strings.SplitN(line, "=", 2)[1]); err == nil {
			mutations = append(mutations, func(s *state.ShuttleState) { s.WDHHours = n })
		}

	case strings.HasPrefix(line, "WLH="):
		if n, err := strconv.Atoi(strings.SplitN(line, "=", 2)[1]); err == nil {
			mutations = append(mutations, func(s *state.ShuttleState) { s.WLHHours = n })
		}

	case strings.HasPrefix(line, "F_CODE="):
		mutations = append(mutations, func(s *state.ShuttleState) { s.ErrorCode = line })
		setTrigger(statemachine.TriggerError)
		clearCurrentCommand()
	}

	return Result{
		Mutate: func(current state.ShuttleState) state.ShuttleState {
			current.LastMessageSentToWMS = line
			for _, m := range mutations {
				m(&current)
			}
			return current
		},
		Trigger:           trigger,
		HasTrigger:        hasTrigger,
		BatteryPercent:    batteryPercent,
		HasBatteryPercent: hasBatteryPercent,
	}
}

// parseBatteryPercent parses a BATTERY=<v> value, tolerating a trailing '%'
// and a leading '<' (e.g. "<5%" for "below 5 percent").
func parseBatteryPercent(value string) (float64, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSuffix(value, "%"), "<")
	percent, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return percent, true
}
