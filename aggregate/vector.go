package aggregate

import "foliopulse/api/models"

// Vector derives the fixed 12-dimension behavior vector from an aggregate
// row. Dimension order is load-bearing: the classifier is trained against it.
//
//	 0: clicked resume
//	 1: code sample opens / 10
//	 2: opened design showcase
//	 3: reserved (leadership focus, never populated)
//	 4: demo plays / 5
//	 5: distinct pages in navigation path / 10
//	 6: max scroll depth
//	 7: total events / 50
//	 8: code sample opens / 5
//	 9: design or demo engagement (0.5 when either)
//	10: browsing pace (0.5 when indeterminate)
//	11: intake form interest (0.3 baseline)
func Vector(agg *models.AggregatedBehavior) []float64 {
	v := make([]float64, models.VectorDims)

	v[0] = boolDim(agg.ClickedResume)
	v[1] = clamp01(float64(agg.OpenedCodeSamplesCount) / 10.0)
	v[2] = boolDim(agg.OpenedDesignShowcase)
	v[3] = 0
	v[4] = clamp01(float64(agg.PlayedDemosCount) / 5.0)
	v[5] = clamp01(float64(distinctCount(agg.NavigationPath)) / 10.0)
	v[6] = clamp01(agg.ScrollDepth)
	v[7] = clamp01(float64(agg.TotalEventCount) / 50.0)
	v[8] = clamp01(float64(agg.OpenedCodeSamplesCount) / 5.0)
	if agg.OpenedDesignShowcase || agg.PlayedDemosCount > 0 {
		v[9] = 0.5
	}
	v[10] = pacingScore(agg)
	if agg.OpenedAiIntakeForm {
		v[11] = 1
	} else {
		v[11] = 0.3
	}

	return v
}

// pacingScore estimates how quickly the visitor moves between pages: the
// reciprocal of average seconds-per-page normalized against a 30s baseline.
// With no navigation history, or no measured homepage time, the pace is
// indeterminate and reported as the 0.5 midpoint.
func pacingScore(agg *models.AggregatedBehavior) float64 {
	navLen := len(agg.NavigationPath)
	if navLen == 0 || agg.TimeOnHomepage <= 0 {
		return 0.5
	}
	secondsPerPage := agg.TimeOnHomepage / float64(navLen)
	return clamp01(1.0 / (secondsPerPage / 30.0))
}

func distinctCount(path []string) int {
	seen := make(map[string]struct{}, len(path))
	for _, p := range path {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func boolDim(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
