package interpreter

import (
	"testing"

	"go.corp.example.com/shuttlegateway/internal/state"
	"go.corp.example.com/shuttlegateway/internal/statemachine"
)

func apply(t *testing.T, r Result, base state.ShuttleState) state.ShuttleState {
	t.Helper()
	return r.Mutate(base)
}

func TestInterpretStartedLines(t *testing.T) {
	tests := []struct {
		line    string
		trigger statemachine.Trigger
	}{
		{"PALLET_IN_STARTED", statemachine.TriggerPalletIn},
		{"PALLET_OUT_STARTED", statemachine.TriggerPalletOut},
		{"FIFO_STARTED", statemachine.TriggerFIFO},
		{"FILO_STARTED", statemachine.TriggerFILO},
		{"STACK_IN_STARTED", statemachine.TriggerStackIn},
		{"STACK_OUT_STARTED", statemachine.TriggerStackOut},
		{"HOME_STARTED", statemachine.TriggerHome},
	}
	for _, tt := range tests {
		r := Interpret(tt.line, LowBatteryThreshold)
		if !r.HasTrigger || r.Trigger != tt.trigger {
			t.Errorf("Interpret(%q) trigger = %v (has=%v), want %v", tt.line, r.Trigger, r.HasTrigger, tt.trigger)
		}
		got := apply(t, r, state.ShuttleState{})
		if got.LastMessageSentToWMS != tt.line {
			t.Errorf("LastMessageSentToWMS = %q, want %q", got.LastMessageSentToWMS, tt.line)
		}
	}
}

func TestInterpretUnrecognizedStartedSetsBusy(t *testing.T) {
	r := Interpret("SOMETHING_STARTED", LowBatteryThreshold)
	if r.HasTrigger {
		t.Fatalf("unrecognized _STARTED line should not set a trigger, got %v", r.Trigger)
	}
	got := apply(t, r, state.ShuttleState{})
	if got.Status != state.StatusBusy {
		t.Errorf("Status = %s, want BUSY", got.Status)
	}
}

func TestInterpretDoneAndAbort(t *testing.T) {
	r := Interpret("FIFO_DONE", LowBatteryThreshold)
	if !r.HasTrigger || r.Trigger != statemachine.TriggerDone {
		t.Fatalf("FIFO_DONE should trigger DONE, got %v/%v", r.Trigger, r.HasTrigger)
	}

	r = Interpret("FIFO_ABORT", LowBatteryThreshold)
	if !r.HasTrigger || r.Trigger != statemachine.TriggerError {
		t.Fatalf("FIFO_ABORT should trigger ERROR, got %v/%v", r.Trigger, r.HasTrigger)
	}
	got := apply(t, r, state.ShuttleState{})
	if got.ErrorCode != "FIFO_ABORT" {
		t.Errorf("ErrorCode = %q, want FIFO_ABORT", got.ErrorCode)
	}
}

func TestInterpretLocationAndCount(t *testing.T) {
	r := Interpret("LOCATION=A12", LowBatteryThreshold)
	got := apply(t, r, state.ShuttleState{CurrentCommand: "FIFO-005"})
	if got.LocationData != "A12" {
		t.Errorf("LocationData = %q, want A12", got.LocationData)
	}
	if got.CurrentCommand != "" {
		t.Errorf("CurrentCommand should be cleared, got %q", got.CurrentCommand)
	}
	if !r.HasTrigger || r.Trigger != statemachine.TriggerDone {
		t.Errorf("LOCATION= should trigger DONE")
	}

	r = Interpret("COUNT_A=5", LowBatteryThreshold)
	got = apply(t, r, state.ShuttleState{CurrentCommand: "COUNT"})
	if got.PalletCountData != "COUNT_A=5" {
		t.Errorf("PalletCountData = %q, want COUNT_A=5", got.PalletCountData)
	}
	if got.CurrentCommand != "" {
		t.Error("CurrentCommand should be cleared on COUNT_*")
	}
}

func TestInterpretStatusMapping(t *testing.T) {
	tests := []struct {
		line string
		want state.Status
	}{
		{"STATUS=FREE", state.StatusFree},
		{"STATUS=CARGO", state.StatusBusy},
		{"STATUS=BUSY", state.StatusBusy},
		{"STATUS=NOT_READY", state.StatusNotReady},
		{"STATUS=MOVING", state.StatusMoving},
		{"STATUS=CHARGING", state.StatusCharging},
		{"STATUS=BOGUS", state.StatusUnknown},
	}
	for _, tt := range tests {
		r := Interpret(tt.line, LowBatteryThreshold)
		got := apply(t, r, state.ShuttleState{})
		if got.Status != tt.want {
			t.Errorf("Interpret(%q).Status = %s, want %s", tt.line, got.Status, tt.want)
		}
	}

	// Terminal statuses clear current_command; non-terminal ones don't.
	r := Interpret("STATUS=FREE", LowBatteryThreshold)
	got := apply(t, r, state.ShuttleState{CurrentCommand: "HOME"})
	if got.CurrentCommand != "" {
		t.Error("STATUS=FREE should clear current_command")
	}

	r = Interpret("STATUS=MOVING", LowBatteryThreshold)
	got = apply(t, r, state.ShuttleState{CurrentCommand: "HOME"})
	if got.CurrentCommand != "HOME" {
		t.Error("STATUS=MOVING should not clear current_command")
	}
}

func TestInterpretBatteryLow(t *testing.T) {
	r := Interpret("BATTERY=15%", 20.0)
	if !r.HasTrigger || r.Trigger != statemachine.TriggerBatteryLow {
		t.Fatalf("BATTERY=15%% under threshold 20 should trigger BATTERY_LOW, got %v/%v", r.Trigger, r.HasTrigger)
	}
	got := apply(t, r, state.ShuttleState{})
	if got.BatteryLevel != "15%" {
		t.Errorf("BatteryLevel = %q, want 15%%", got.BatteryLevel)
	}

	r = Interpret("BATTERY=<5%", 20.0)
	if !r.HasTrigger || r.Trigger != statemachine.TriggerBatteryLow {
		t.Fatalf("BATTERY=<5%% should trigger BATTERY_LOW, got %v/%v", r.Trigger, r.HasTrigger)
	}

	r = Interpret("BATTERY=90%", 20.0)
	if r.HasTrigger {
		t.Fatalf("BATTERY=90%% should not trigger BATTERY_LOW, got %v", r.Trigger)
	}
}

func TestInterpretWDHAndWLH(t *testing.T) {
	r := Interpret("WDH=12", LowBatteryThreshold)
	got := apply(t, r, state.ShuttleState{})
	if got.WDHHours != 12 {
		t.Errorf("WDHHours = %d, want 12", got.WDHHours)
	}

	r = Interpret("WLH=340", LowBatteryThreshold)
	got = apply(t, r, state.ShuttleState{})
	if got.WLHHours != 340 {
		t.Errorf("WLHHours = %d, want 340", got.WLHHours)
	}
}

func TestInterpretFCode(t *testing.T) {
	r := Interpret("F_CODE=E42", LowBatteryThreshold)
	if !r.HasTrigger || r.Trigger != statemachine.TriggerError {
		t.Fatalf("F_CODE= should trigger ERROR, got %v/%v", r.Trigger, r.HasTrigger)
	}
	got := apply(t, r, state.ShuttleState{CurrentCommand: "FIFO-002"})
	if got.ErrorCode != "F_CODE=E42" {
		t.Errorf("ErrorCode = %q, want F_CODE=E42", got.ErrorCode)
	}
	if got.CurrentCommand != "" {
		t.Error("F_CODE= should clear current_command")
	}
}

func TestInterpretUnrecognizedLineIsNoOp(t *testing.T) {
	r := Interpret("MRCD", LowBatteryThreshold)
	if r.HasTrigger {
		t.Fatalf("MRCD should not be a triggering line, got %v", r.Trigger)
	}
	got := apply(t, r, state.ShuttleState{Status: state.StatusFree})
	if got.Status != state.StatusFree {
		t.Error("MRCD should not alter status")
	}
	if got.LastMessageSentToWMS != "MRCD" {
		t.Error("LastMessageSentToWMS should still be recorded for every line")
	}
}
