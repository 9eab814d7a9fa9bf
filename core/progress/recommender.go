package progress

import "time"

// DefaultThreshold is the progress below which a module needs remediation.
const DefaultThreshold = 60.0

const (
	strugglingText     = "Student is struggling with this module. Recommend targeted exercises and 3D model simulations."
	belowThresholdText = "Student progress below threshold. Recommend review material and guided exercises."
)

// Recommendation is a remediation suggestion for a single module.
type Recommendation struct {
	ModuleName     string  `json:"module_name"`
	Progress       float64 `json:"progress"`
	Struggling     bool    `json:"struggling"`
	LastActive     *string `json:"last_active"` // RFC 3339, null if never active
	Recommendation string  `json:"recommendation"`
}

// NeedsRemediation reports whether rec is struggling or strictly below threshold.
func NeedsRemediation(rec Record, threshold float64) bool {
	return rec.Struggling || rec.Progress < threshold
}

// Recommend keeps the records needing remediation, in their original order,
// and attaches the matching recommendation text to each.
// It never returns a nil slice.
func Recommend(records []Record, threshold float64) []Recommendation {
	recs := make([]Recommendation, 0, len(records))
	for _, rec := range records {
		if !NeedsRemediation(rec, threshold) {
			continue
		}
		text := belowThresholdText
		if rec.Struggling {
			text = strugglingText
		}
		recs = append(recs, Recommendation{
			ModuleName:     rec.ModuleName,
			Progress:       rec.Progress,
			Struggling:     rec.Struggling,
			LastActive:     formatLastActive(rec.LastActive),
			Recommendation: text,
		})
	}
	return recs
}

func formatLastActive(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
