// Package processing turns raw sim telemetry exports into the processed
// per-sample table the analysis pipeline reads.
package processing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"race-strategy-engine/internal/models"
)

// Thresholds applied to raw channels.
const (
	BrakeEventThreshold   = 5.0  // raw brake input above this is a braking sample
	TractionLossThreshold = 0.15 // mean signed slip above this is traction loss
	DefaultSampleInterval = 0.01 // seconds, used when the export has no time base
)

var (
	wheelSlipColumns = []string{
		"tire_slip_rotation_front_left", "tire_slip_rotation_front_right",
		"tire_slip_rotation_rear_left", "tire_slip_rotation_rear_right",
	}
	wheelTempColumns = []string{
		"tire_temp_front_left", "tire_temp_front_right",
		"tire_temp_rear_left", "tire_temp_rear_right",
	}
)

// timeBase picks how time_s is derived for a header.
type timeBase int

const (
	timeFromMillis timeBase = iota
	timeFromRaceTime
	timeFromIndex
)

// ProcessCSV reads a raw export and derives processed samples.
//
// time_s comes from timestamp_ms/1000, else current_race_time, else the row
// index at DefaultSampleInterval. Slip and temperature are four-wheel means.
func ProcessCSV(r io.Reader) ([]models.TelemetrySample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	required := append([]string{"lap_number", "speed", "brake"}, wheelSlipColumns...)
	required = append(required, wheelTempColumns...)
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, models.NewConfigurationError(strings.Join(missing, ","), "required raw column missing")
	}

	base := timeFromIndex
	if _, ok := idx["timestamp_ms"]; ok {
		base = timeFromMillis
	} else if _, ok := idx["current_race_time"]; ok {
		base = timeFromRaceTime
	}

	var out []models.TelemetrySample
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}

		get := func(col string) (float64, error) {
			i := idx[col]
			if i >= len(record) {
				return 0, fmt.Errorf("missing %s", col)
			}
			return strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		}

		s, err := processRow(get, base, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		out = append(out, s)
		row++
	}
	return out, nil
}

func processRow(get func(string) (float64, error), base timeBase, row int) (models.TelemetrySample, error) {
	var s models.TelemetrySample

	switch base {
	case timeFromMillis:
		ms, err := get("timestamp_ms")
		if err != nil {
			return s, err
		}
		s.TimeS = ms / 1000.0
	case timeFromRaceTime:
		t, err := get("current_race_time")
		if err != nil {
			return s, err
		}
		s.TimeS = t
	default:
		s.TimeS = float64(row) * DefaultSampleInterval
	}

	lap, err := get("lap_number")
	if err != nil {
		return s, err
	}
	s.Lap = int(lap)

	if s.Speed, err = get("speed"); err != nil {
		return s, err
	}

	brake, err := get("brake")
	if err != nil {
		return s, err
	}
	if brake > BrakeEventThreshold {
		s.BrakeEvent = 1
	}

	if s.TireSlipAvg, err = mean(get, wheelSlipColumns); err != nil {
		return s, err
	}
	// Signed slip: only over-rotation counts as traction loss here.
	if s.TireSlipAvg > TractionLossThreshold {
		s.TractionLoss = 1
	}

	if s.TireTempAvg, err = mean(get, wheelTempColumns); err != nil {
		return s, err
	}
	return s, nil
}

func mean(get func(string) (float64, error), cols []string) (float64, error) {
	var sum float64
	for _, c := range cols {
		v, err := get(c)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(cols)), nil
}

// WriteCSV writes processed samples with the canonical header.
func WriteCSV(w io.Writer, samples []models.TelemetrySample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time_s", "lap", "speed", "brake_event", "tire_slip_avg", "traction_loss", "tire_temp_avg"}); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{
			strconv.FormatFloat(s.TimeS, 'f', -1, 64),
			strconv.Itoa(s.Lap),
			strconv.FormatFloat(s.Speed, 'f', -1, 64),
			strconv.Itoa(s.BrakeEvent),
			strconv.FormatFloat(s.TireSlipAvg, 'f', -1, 64),
			strconv.Itoa(s.TractionLoss),
			strconv.FormatFloat(s.TireTempAvg, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
