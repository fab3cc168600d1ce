// Package engine derives production metrics and per-slot figures from
// shift inputs. It is pure calculation: no I/O, no clocks, no state.
package engine

import (
	"strconv"
	"strings"
	"time"
)

const clockLayout = "15:04"

// ComputeMetrics derives the shift metrics from the form input. It
// returns ok=false without computing when either clock time is missing
// or unparsable; the caller keeps whatever metrics it already has.
//
// Division by a zero or negative working time is deliberately not
// guarded. The resulting Inf/NaN/negative figures flow through to
// downstream consumers unchanged.
func ComputeMetrics(in ShiftInput) (Metrics, bool) {
	if in.StartTime == "" || in.EndTime == "" {
		return Metrics{}, false
	}

	start, err := time.Parse(clockLayout, in.StartTime)
	if err != nil {
		return Metrics{}, false
	}
	end, err := time.Parse(clockLayout, in.EndTime)
	if err != nil {
		return Metrics{}, false
	}

	// Overnight shift: an end clock before the start clock means the
	// shift runs past midnight.
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}

	totalTime := end.Sub(start).Hours()
	workingTime := totalTime - in.BreakTime
	hourlyTarget := in.PlanTarget / workingTime
	tactTime := 3600 / hourlyTarget

	return Metrics{
		TotalTimeHours:    totalTime,
		WorkingTimeHours:  workingTime,
		HourlyTarget:      hourlyTarget,
		TactTime:          tactTime,
		PlanTarget:        in.PlanTarget,
		AchievementFactor: in.AchievementFactor,
		RequiredManpower:  in.RequiredManpower,
		ActualManpower:    in.ActualManpower,
	}, true
}

// RecomputeSlots rebuilds every derived slot field and the aggregate
// summary in a single left-to-right pass. The cumulative plan and the
// productivity average depend on global sequence state, so there is no
// partial recompute: callers run this in full after every mutation to a
// slot, the slot sequence, or the metrics.
func RecomputeSlots(m Metrics, slots []TimeSlot) ([]TimeSlot, Summary) {
	out := make([]TimeSlot, len(slots))

	var cumulativePlan, totalActual, productivitySum float64
	validCount := 0

	for i, slot := range slots {
		slot.Plan = m.HourlyTarget * slot.WorkingTime
		cumulativePlan += slot.Plan
		slot.PlanCumulative = cumulativePlan

		// Variance compares this slot's actual against the cumulative
		// plan so far, not against the slot's own plan.
		slot.Variance = slot.Actual - cumulativePlan

		slot.ProductivityRate = 0
		if cumulativePlan > 0 && slot.Actual > 0 {
			productivity := (slot.Actual / cumulativePlan) *
				(m.RequiredManpower / m.ActualManpower) * m.AchievementFactor
			slot.ProductivityRate = productivity * 100
			productivitySum += productivity
			validCount++
		}

		totalActual += slot.Actual
		out[i] = slot
	}

	summary := Summary{
		TotalPlan:     cumulativePlan,
		TotalActual:   totalActual,
		TotalVariance: totalActual - cumulativePlan,
	}
	if validCount > 0 {
		summary.AvgProductivity = productivitySum / float64(validCount) * 100
	}
	return out, summary
}

// SummaryOf rebuilds the aggregate summary from already-derived slot
// figures without touching them. Used when loading a stored session,
// where the persisted figures are authoritative and must not be
// recomputed.
func SummaryOf(slots []TimeSlot) Summary {
	var s Summary
	var productivitySum float64
	validCount := 0

	for _, slot := range slots {
		s.TotalPlan = slot.PlanCumulative
		s.TotalActual += slot.Actual
		if slot.ProductivityRate > 0 {
			productivitySum += slot.ProductivityRate / 100
			validCount++
		}
	}
	s.TotalVariance = s.TotalActual - s.TotalPlan
	if validCount > 0 {
		s.AvgProductivity = productivitySum / float64(validCount) * 100
	}
	return s
}

// ParseNumber converts free-form numeric form input to a float64.
// Anything that does not parse becomes zero. This is the documented
// default for malformed input, not silent data loss.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
