package models

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the kind shared by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports input or configuration that makes a run impossible.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// WarningKind classifies a non-fatal insufficient-data signal
type WarningKind string

const (
	WarnFewLaps          WarningKind = "few_laps"
	WarnFewFitLaps       WarningKind = "few_fit_laps"
	WarnZeroStress       WarningKind = "zero_stress"
	WarnNegativeSlope    WarningKind = "negative_slope"
	WarnCoverageMismatch WarningKind = "coverage_mismatch"
)

// Warning is an insufficient-data signal. The pipeline falls back to a
// documented default and continues.
type Warning struct {
	Kind     WarningKind `json:"kind" yaml:"kind"`
	Message  string      `json:"message" yaml:"message"`
	Strategy string      `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

func (w Warning) String() string {
	if w.Strategy != "" {
		return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Strategy, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
