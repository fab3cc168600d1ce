package engine

// ShiftInput holds the user-entered shift parameters for one editing
// session. Numeric fields that arrive malformed from a form are parsed
// to zero (see ParseNumber) before they land here.
type ShiftInput struct {
	Line              string  `json:"line"`
	Date              string  `json:"date"` // ISO calendar date, e.g. 2026-08-31
	PlanTarget        float64 `json:"plan_target"`
	AchievementFactor float64 `json:"achievement_factor"`
	RequiredManpower  float64 `json:"required_manpower"`
	ActualManpower    float64 `json:"actual_manpower"`
	StartTime         string  `json:"start_time"` // wall clock, "06:00"
	EndTime           string  `json:"end_time"`
	BreakTime         float64 `json:"break_time"` // hours
}

// Metrics is the derived scheduling profile for a shift. It carries a
// copy of the input fields it was computed from so a persisted session
// is self-contained.
type Metrics struct {
	TotalTimeHours    float64 `json:"total_time_hours"`
	WorkingTimeHours  float64 `json:"working_time_hours"`
	HourlyTarget      float64 `json:"hourly_target"` // units per hour
	TactTime          float64 `json:"tact_time"`     // seconds per unit
	PlanTarget        float64 `json:"plan_target"`
	AchievementFactor float64 `json:"achievement_factor"`
	RequiredManpower  float64 `json:"required_manpower"`
	ActualManpower    float64 `json:"actual_manpower"`
}

// TimeSlot is one row of the hourly table. TimeSlotLabel, WorkingTime
// and Actual are user-entered; Plan, PlanCumulative, Variance and
// ProductivityRate are always overwritten by RecomputeSlots and must
// never be edited independently.
type TimeSlot struct {
	ID               string  `json:"id"`
	TimeSlot         string  `json:"time_slot"` // free text, "06:00 ~ 07:00"
	WorkingTime      float64 `json:"working_time"`
	Plan             float64 `json:"plan"`
	PlanCumulative   float64 `json:"plan_cumulative"`
	Actual           float64 `json:"actual"`
	Variance         float64 `json:"variance"`
	ProductivityRate float64 `json:"productivity_rate"`
}

// Summary aggregates the full slot sequence.
type Summary struct {
	TotalPlan       float64 `json:"total_plan"`
	TotalActual     float64 `json:"total_actual"`
	TotalVariance   float64 `json:"total_variance"`
	AvgProductivity float64 `json:"avg_productivity"`
}
