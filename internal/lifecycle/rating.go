package lifecycle

import "math"

// ComputeRating derives the profile aggregate from the full set of ratings:
// the mean rounded to one decimal place, and the count.
func ComputeRating(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	return RatingSummary{
		Average: math.Round(mean*10) / 10,
		Count:   len(ratings),
	}
}
