package pipeline

import "fmt"

// Alert thresholds. Acidity outside the extreme bounds, high severity
// scores, and low-confidence classifications each raise an alert; a single
// reading may raise several at once.
const (
	AcidityExtremeLow    = 4.5
	AcidityExtremeHigh   = 8.5
	ScoreCritical        = 8
	ScoreConcerning      = 6
	ConfidenceLowerBound = 0.5
)

// AlertKind identifies the policy rule that fired.
type AlertKind int

const (
	AlertExtremeAcidity AlertKind = iota
	AlertCritical
	AlertConcerning
	AlertLowConfidence
)

func (k AlertKind) String() string {
	switch k {
	case AlertExtremeAcidity:
		return "extreme-acidity"
	case AlertCritical:
		return "critical"
	case AlertConcerning:
		return "concerning"
	case AlertLowConfidence:
		return "low-confidence"
	default:
		return "unknown"
	}
}

// Alert is one fired policy rule with a human-readable message.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// EvaluateAlerts applies the alert policy to a processed reading. It is a
// pure function: it returns the full set of fired alerts and never fails.
func EvaluateAlerts(r ProcessedReading) []Alert {
	var alerts []Alert

	if r.PHAverage < AcidityExtremeLow || r.PHAverage > AcidityExtremeHigh {
		alerts = append(alerts, Alert{
			Kind: AlertExtremeAcidity,
			Message: fmt.Sprintf(
				"acidity average %.2f outside [%.1f, %.1f]",
				r.PHAverage, AcidityExtremeLow, AcidityExtremeHigh,
			),
		})
	}

	switch {
	case r.Score >= ScoreCritical:
		alerts = append(alerts, Alert{
			Kind:    AlertCritical,
			Message: fmt.Sprintf("health score %d is critical", r.Score),
		})
	case r.Score >= ScoreConcerning:
		alerts = append(alerts, Alert{
			Kind:    AlertConcerning,
			Message: fmt.Sprintf("health score %d is concerning", r.Score),
		})
	}

	if r.Confidence < ConfidenceLowerBound {
		alerts = append(alerts, Alert{
			Kind: AlertLowConfidence,
			Message: fmt.Sprintf(
				"classification confidence %.2f below %.2f",
				r.Confidence, ConfidenceLowerBound,
			),
		})
	}

	return alerts
}
