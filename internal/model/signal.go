package model

import "slices"

// Signal is one verification method.
type Signal string

const (
	SignalTime       Signal = "time"
	SignalLocation   Signal = "location"
	SignalPhoto      Signal = "photo"
	SignalScreentime Signal = "screentime"
	SignalManual     Signal = "manual"
)

// AllSignals lists every signal in canonical order.
var AllSignals = []Signal{SignalTime, SignalLocation, SignalPhoto, SignalScreentime, SignalManual}

// ParseSignal maps a canonical signal name to a Signal.
func ParseSignal(s string) (Signal, bool) {
	switch Signal(s) {
	case SignalTime, SignalLocation, SignalPhoto, SignalScreentime, SignalManual:
		return Signal(s), true
	default:
		return "", false
	}
}

// Objective reports whether s is stronger than self-report.
func (s Signal) Objective() bool {
	switch s {
	case SignalLocation, SignalPhoto, SignalScreentime:
		return true
	case SignalTime, SignalManual:
		return false
	default:
		return false
	}
}

func (s Signal) rank() int {
	return slices.Index(AllSignals, s)
}

// SortSignals returns a deduplicated copy of in, in canonical order, with
// unknown values removed.
func SortSignals(in []Signal) []Signal {
	out := make([]Signal, 0, len(in))
	for _, s := range in {
		if s.rank() < 0 || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Signal) int { return a.rank() - b.rank() })
	return out
}

// HasObjective reports whether any signal in set is objective.
func HasObjective(set []Signal) bool {
	return slices.ContainsFunc(set, Signal.Objective)
}
