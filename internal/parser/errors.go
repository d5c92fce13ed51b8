package parser

import "errors"

// ErrMalformedInput is returned when telemetry input cannot be decoded at all.
var ErrMalformedInput = errors.New("malformed telemetry input")
