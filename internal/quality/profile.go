package quality

// Grade buckets a connection's current health. Classification walks the
// thresholds in order, worst first; the first match wins.
type Grade string

const (
	GradePoor      Grade = "poor"
	GradeFair      Grade = "fair"
	GradeGood      Grade = "good"
	GradeExcellent Grade = "excellent"
)

// VideoProfile is the recommended capture configuration for a grade.
type VideoProfile struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	FrameRate  int `json:"frameRate"`
	BitrateBps int `json:"bitrateBps"`
}

var profiles = map[Grade]VideoProfile{
	GradePoor:      {Width: 640, Height: 360, FrameRate: 15, BitrateBps: 400_000},
	GradeFair:      {Width: 854, Height: 480, FrameRate: 24, BitrateBps: 800_000},
	GradeGood:      {Width: 1280, Height: 720, FrameRate: 30, BitrateBps: 1_500_000},
	GradeExcellent: {Width: 1920, Height: 1080, FrameRate: 30, BitrateBps: 2_500_000},
}

// ProfileFor maps a grade to its recommended video profile. Unknown grades
// get the poor profile rather than a zeroed one.
func ProfileFor(grade Grade) VideoProfile {
	if profile, ok := profiles[grade]; ok {
		return profile
	}
	return profiles[GradePoor]
}

// Classify grades a measurement. Each check is an OR of its three
// conditions, so one bad dimension is enough to drop the grade.
func Classify(bandwidthMbps, latencyMs, packetLossPercent float64) Grade {
	switch {
	case bandwidthMbps < 1 || latencyMs > 200 || packetLossPercent > 5:
		return GradePoor
	case bandwidthMbps < 2 || latencyMs > 150 || packetLossPercent > 3:
		return GradeFair
	case bandwidthMbps < 5 || latencyMs > 100 || packetLossPercent > 1:
		return GradeGood
	default:
		return GradeExcellent
	}
}
