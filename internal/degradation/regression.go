package degradation

// Slope returns the first-degree least-squares slope and intercept of ys
// against xs. It returns ErrDegenerateFit when xs has no variance.
func Slope(xs, ys []float64) (slope, intercept float64, err error) {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0, 0, ErrDegenerateFit
	}

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx float64
	for i := range xs {
		dx := xs[i] - mx
		sxy += dx * (ys[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, my, ErrDegenerateFit
	}

	slope = sxy / sxx
	return slope, my - slope*mx, nil
}
