package model

import "fmt"

type CycleState string

const (
	CycleIdle      CycleState = "idle"
	CycleRunning   CycleState = "running"
	CycleCompleted CycleState = "completed"
	CycleFailed    CycleState = "failed"
)

// Completed and failed are terminal for a single run; a later run starts a
// fresh running state from either of them.
var validCycleTransitions = map[CycleState]map[CycleState]bool{
	CycleIdle: {
		CycleRunning: true,
	},
	CycleRunning: {
		CycleCompleted: true,
		CycleFailed:    true,
	},
	CycleCompleted: {
		CycleRunning: true,
	},
	CycleFailed: {
		CycleRunning: true,
	},
}

func IsCycleTerminal(s CycleState) bool {
	return s == CycleCompleted || s == CycleFailed
}

func ValidateCycleTransition(from, to CycleState) error {
	allowed, ok := validCycleTransitions[from]
	if !ok {
		return fmt.Errorf("unknown cycle state %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid cycle transition from %q to %q", from, to)
	}
	return nil
}
