package geom

// SmoothCurve applies Chaikin corner cutting: every edge is replaced by the points
// at 1/4 and 3/4 along it. The first and last points are kept. Fewer than three
// points are returned unchanged.
func SmoothCurve(points []Point, iterations int) []Point {
	if len(points) < 3 {
		return points
	}

	result := append([]Point(nil), points...)
	for iter := 0; iter < iterations; iter++ {
		next := make([]Point, 0, 2*len(result))
		next = append(next, result[0])
		for i := 0; i < len(result)-1; i++ {
			p0, p1 := result[i], result[i+1]
			next = append(next,
				Point{X: 0.75*p0.X + 0.25*p1.X, Y: 0.75*p0.Y + 0.25*p1.Y},
				Point{X: 0.25*p0.X + 0.75*p1.X, Y: 0.25*p0.Y + 0.75*p1.Y},
			)
		}
		next = append(next, result[len(result)-1])
		result = next
	}
	return result
}

// DownsamplePoints keeps every step-th point and always the last one.
func DownsamplePoints(points []Point, step int) []Point {
	if len(points) == 0 {
		return nil
	}
	if step < 1 {
		step = 1
	}
	out := make([]Point, 0, len(points)/step+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return append(out, points[len(points)-1])
}
