package domain

import "time"

// DelayAssessment is the outcome of comparing a baseline ETA against the
// currently computed ETA relative to now. It is shared between the alert
// detection engine and the exception delay detector.
type DelayAssessment struct {
	// Delayed is true when the trip has slipped past tolerance.
	Delayed bool
	// PastDue is true when the baseline has already passed while the trip is
	// still expected to run. DelayMinutes carries the measurement then.
	PastDue bool
	// DelayMinutes is the minutes the current ETA extends past the baseline
	// regime's reference point (only meaningful when PastDue).
	DelayMinutes float64
	// DelayPercent is the relative slippage of the remaining travel time
	// (only meaningful when both ETAs are in the future).
	DelayPercent float64
}

// EvaluateDelay compares the baseline ETA against the current ETA.
//
// Two regimes apply:
//   - the baseline is already in the past but the current ETA is still in the
//     future: the trip is flat "past due", measured in minutes from now to the
//     current ETA;
//   - both are in the future: slippage is the percentage growth of remaining
//     travel time, delayed when it reaches thresholdPercent.
//
// A current ETA already in the past, or a zero baseline, yields no delay.
func EvaluateDelay(baseline, current, now time.Time, thresholdPercent float64) DelayAssessment {
	if baseline.IsZero() || current.IsZero() || !current.After(now) {
		return DelayAssessment{}
	}

	if !baseline.After(now) {
		// Past due: the planned time has passed and the vehicle is still out.
		return DelayAssessment{
			Delayed:      true,
			PastDue:      true,
			DelayMinutes: current.Sub(now).Minutes(),
		}
	}

	baselineRemaining := baseline.Sub(now).Minutes()
	currentRemaining := current.Sub(now).Minutes()
	if baselineRemaining <= 0 {
		return DelayAssessment{}
	}

	percent := (currentRemaining - baselineRemaining) / baselineRemaining * 100
	return DelayAssessment{
		Delayed:      percent >= thresholdPercent,
		DelayPercent: percent,
	}
}

// DelaySeverity grades a delay assessment. Percentage delays escalate at
// 30% and 50%; past-due delays are always high.
func DelaySeverity(a DelayAssessment) Severity {
	if a.PastDue {
		return SeverityHigh
	}
	switch {
	case a.DelayPercent >= 50:
		return SeverityCritical
	case a.DelayPercent >= 30:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
