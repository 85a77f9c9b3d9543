package navgraph

// Lerp interpolates between a and b; t=0 gives a, t=1 gives b.
func Lerp(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsPointNearLine reports whether p lies within threshold of the segment a-b.
func IsPointNearLine(p, a, b Point, threshold float64) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return distance(p, a) <= threshold
	}
	t := Clamp(((p.X-a.X)*dx+(p.Y-a.Y)*dy)/lenSq, 0, 1)
	return distance(p, Lerp(a, b, t)) <= threshold
}
