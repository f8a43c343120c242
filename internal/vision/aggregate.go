package vision

import (
	"slices"
)

// Point is a click target in screenshot (CSS) pixels as reported by the model.
type Point struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Double bool `json:"double"`
}

// Aggregate combines noisy samples into one point. Each axis is trimmed
// with Tukey fences once there are at least four samples; the double-click
// flag is a majority vote with ties resolving to true.
func Aggregate(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	xs := make([]int, len(points))
	ys := make([]int, len(points))
	doubles := 0
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
		if p.Double {
			doubles++
		}
	}

	return Point{
		X:      robustMean(xs),
		Y:      robustMean(ys),
		Double: doubles*2 >= len(points),
	}
}

// robustMean sorts values in place.
func robustMean(values []int) int {
	slices.Sort(values)
	n := len(values)
	if n < 4 {
		return mean(values)
	}

	// Nearest rank on the last index; with n/4 and 3n/4 the upper quartile
	// of four samples would be the maximum itself.
	last := n - 1
	q1 := float64(values[last/4])
	q3 := float64(values[(3*last)/4])
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	kept := make([]int, 0, n)
	for _, v := range values {
		if f := float64(v); f >= lower && f <= upper {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return mean(values)
	}
	return mean(kept)
}

// mean truncates toward zero.
func mean(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum / len(values)
}
