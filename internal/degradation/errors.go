package degradation

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoMetrics     = errors.New("no lap metrics")
	ErrDegenerateFit = errors.New("degenerate regression input")
)
