package classify

// recommendations maps each score on the health scale to human-readable
// advice, surfaced alongside one-shot comprehensive readings.
var recommendations = map[int]string{
	1:  "Readings are optimal. No action needed.",
	2:  "Readings are healthy. Maintain current intake.",
	3:  "Mildly concentrated reading. Consider drinking a glass of water.",
	4:  "Moderately concentrated reading. Increase fluid intake over the next few hours.",
	5:  "Concentrated reading. Drink water now and recheck within the hour.",
	6:  "Elevated concentration. Increase fluid intake and avoid diuretics today.",
	7:  "High concentration. Hydrate promptly and recheck after the next reading.",
	8:  "Very high concentration. Hydrate immediately and monitor closely.",
	9:  "Severe reading. Hydrate immediately; if it persists, seek medical advice.",
	10: "Critical reading. Seek medical advice; repeated readings at this level are abnormal.",
}

// Recommendation returns the advice string for a score. Scores outside the
// 1..10 scale return an empty string.
func Recommendation(score int) string {
	return recommendations[score]
}
