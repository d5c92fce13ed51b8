package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"race-strategy-engine/internal/models"
	"race-strategy-engine/pkg/logger"
)

// Parser handles parsing of processed telemetry files
type Parser struct {
	format string
	log    logger.Logger
}

// NewParser creates a new parser with the specified format (csv, json, jsonl)
func NewParser(format string, log logger.Logger) *Parser {
	if log == nil {
		log = logger.Nop()
	}
	return &Parser{format: strings.ToLower(format), log: log}
}

// FormatFromFilename guesses a format from a file extension, defaulting to csv
func FormatFromFilename(filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".jsonl"), strings.HasSuffix(strings.ToLower(filename), ".ndjson"):
		return "jsonl"
	case strings.HasSuffix(strings.ToLower(filename), ".json"):
		return "json"
	default:
		return "csv"
	}
}

// ParseFile parses a telemetry file
func (p *Parser) ParseFile(ctx context.Context, filename string) ([]models.TelemetrySample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(ctx, file)
}

// Parse parses telemetry from r in the parser's format
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]models.TelemetrySample, error) {
	switch p.format {
	case "csv", "":
		return p.parseCSV(ctx, r)
	case "json":
		return p.parseJSON(ctx, r)
	case "jsonl", "ndjson":
		return p.parseJSONLines(ctx, r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

// parseCSV parses CSV formatted telemetry
func (p *Parser) parseCSV(ctx context.Context, r io.Reader) ([]models.TelemetrySample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}

	var results []models.TelemetrySample
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}

		sample, err := recordToSample(record, indices)
		if err != nil {
			// Log and continue parsing
			p.log.Warn(ctx, "skipping malformed row", logger.Int("line", lineNum), logger.Error(err))
			continue
		}
		results = append(results, sample)
	}

	return results, nil
}

// recordToSample converts a CSV record to a TelemetrySample
func recordToSample(record []string, indices map[string]int) (models.TelemetrySample, error) {
	var s models.TelemetrySample
	var err error

	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	if s.Lap, err = parseLap(getValue(ColLap)); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColLap, err)
	}
	if s.TimeS, err = strconv.ParseFloat(getValue(ColTime), 64); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColTime, err)
	}
	if s.Speed, err = strconv.ParseFloat(getValue(ColSpeed), 64); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColSpeed, err)
	}
	if s.BrakeEvent, err = ParseFlag(getValue(ColBrakeEvent)); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColBrakeEvent, err)
	}
	if s.TireSlipAvg, err = strconv.ParseFloat(getValue(ColTireSlip), 64); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColTireSlip, err)
	}
	if s.TractionLoss, err = ParseFlag(getValue(ColTractionLoss)); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColTractionLoss, err)
	}
	if s.TireTempAvg, err = strconv.ParseFloat(getValue(ColTireTemp), 64); err != nil {
		return s, fmt.Errorf("invalid %s: %w", ColTireTemp, err)
	}

	return s, nil
}

// parseLap accepts integer lap ids, including "3.0" as written by dataframe exports
func parseLap(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("lap %q is not an integer", v)
	}
	return int(f), nil
}

// ParseFlag parses a 0/1 indicator. Booleans and other numbers are accepted;
// any positive number counts as set.
func ParseFlag(v string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes":
		return 1, nil
	case "false", "no", "":
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f > 0 {
		return 1, nil
	}
	return 0, nil
}

// jsonSample mirrors models.TelemetrySample with presence tracking.
// Lap and flags decode as numbers so dataframe exports ("lap": 3.0) are accepted.
type jsonSample struct {
	TimeS        *float64 `json:"time_s"`
	Lap          *float64 `json:"lap"`
	Speed        *float64 `json:"speed"`
	BrakeEvent   *float64 `json:"brake_event"`
	TireSlipAvg  *float64 `json:"tire_slip_avg"`
	TractionLoss *float64 `json:"traction_loss"`
	TireTempAvg  *float64 `json:"tire_temp_avg"`
}

func indicator(v float64) int {
	if v > 0 {
		return 1
	}
	return 0
}

func (j jsonSample) toSample() (models.TelemetrySample, error) {
	missing := []string{}
	if j.Lap == nil {
		missing = append(missing, ColLap)
	}
	if j.TimeS == nil {
		missing = append(missing, ColTime)
	}
	if j.Speed == nil {
		missing = append(missing, ColSpeed)
	}
	if j.BrakeEvent == nil {
		missing = append(missing, ColBrakeEvent)
	}
	if j.TireSlipAvg == nil {
		missing = append(missing, ColTireSlip)
	}
	if j.TractionLoss == nil {
		missing = append(missing, ColTractionLoss)
	}
	if j.TireTempAvg == nil {
		missing = append(missing, ColTireTemp)
	}
	if len(missing) > 0 {
		return models.TelemetrySample{}, models.NewConfigurationError(strings.Join(missing, ","), "required field missing")
	}

	lap := int(*j.Lap)
	if float64(lap) != *j.Lap {
		return models.TelemetrySample{}, fmt.Errorf("%w: lap %v is not an integer", ErrMalformedInput, *j.Lap)
	}

	return models.TelemetrySample{
		TimeS:        *j.TimeS,
		Lap:          lap,
		Speed:        *j.Speed,
		BrakeEvent:   indicator(*j.BrakeEvent),
		TireSlipAvg:  *j.TireSlipAvg,
		TractionLoss: indicator(*j.TractionLoss),
		TireTempAvg:  *j.TireTempAvg,
	}, nil
}

// parseJSON parses a JSON array of samples. Input that is not an array is
// read as JSON lines.
func (p *Parser) parseJSON(ctx context.Context, r io.Reader) ([]models.TelemetrySample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return p.parseJSONLines(ctx, bytes.NewReader(trimmed))
	}

	var raw []jsonSample
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	results := make([]models.TelemetrySample, 0, len(raw))
	for _, j := range raw {
		s, err := j.toSample()
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, nil
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(ctx context.Context, r io.Reader) ([]models.TelemetrySample, error) {
	var results []models.TelemetrySample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}

		// Remove trailing comma if present
		line = strings.TrimSuffix(line, ",")

		var j jsonSample
		if err := json.Unmarshal([]byte(line), &j); err != nil {
			p.log.Warn(ctx, "skipping malformed line", logger.Int("line", lineNum), logger.Error(err))
			continue
		}
		s, err := j.toSample()
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}

	return results, scanner.Err()
}

// ValidateSample validates a telemetry sample
func ValidateSample(s *models.TelemetrySample) []string {
	var errors []string

	if s.TimeS < 0 {
		errors = append(errors, "time_s cannot be negative")
	}
	if s.Speed < 0 {
		errors = append(errors, "speed cannot be negative")
	}
	if s.BrakeEvent != 0 && s.BrakeEvent != 1 {
		errors = append(errors, "brake_event must be 0 or 1")
	}
	if s.TractionLoss != 0 && s.TractionLoss != 1 {
		errors = append(errors, "traction_loss must be 0 or 1")
	}
	if s.TireTempAvg < -50 || s.TireTempAvg > 250 {
		errors = append(errors, "tire_temp_avg must be between -50 and 250")
	}

	return errors
}
