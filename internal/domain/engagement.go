package domain

// EngagementLevel is the coarse participation tier shown on dashboards.
type EngagementLevel string

// Engagement tiers.
const (
	EngagementLow    EngagementLevel = "low"
	EngagementMedium EngagementLevel = "medium"
	EngagementHigh   EngagementLevel = "high"
)

// EngagementThresholds are the configurable cut-points for the tiers. The
// exact values are a product decision, so they live in configuration (and can
// be hot-reloaded), not in code.
type EngagementThresholds struct {
	// DefaultThreshold applies when a session sets no participation threshold.
	DefaultThreshold float64 `json:"default_threshold" validate:"gt=0,lte=100"`
	// HighMultiplier scales the threshold for the medium/high boundary.
	HighMultiplier float64 `json:"high_multiplier" validate:"gt=1"`
}

// DefaultEngagementThresholds are the shipped cut-points: below 30% is low,
// below 60% is medium, 60% and up is high.
func DefaultEngagementThresholds() EngagementThresholds {
	return EngagementThresholds{
		DefaultThreshold: 30,
		HighMultiplier:   2,
	}
}

// EngagementFor classifies a participation rate. The session's own threshold
// wins when set; otherwise the configured default applies.
func EngagementFor(rate, sessionThreshold float64, th EngagementThresholds) EngagementLevel {
	threshold := sessionThreshold
	if threshold <= 0 {
		threshold = th.DefaultThreshold
	}
	if threshold <= 0 {
		return EngagementLow
	}
	switch {
	case rate < threshold:
		return EngagementLow
	case rate < threshold*th.HighMultiplier:
		return EngagementMedium
	default:
		return EngagementHigh
	}
}
