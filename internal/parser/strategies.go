package parser

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"race-strategy-engine/internal/models"
)

// strategyFile is the YAML layout of a candidate strategy list:
//
//	strategies:
//	  - name: "1-stop: Medium → Hard"
//	    stints:
//	      - {lap_count: 8, compound: Medium}
//	      - {lap_count: 12, compound: Hard}
type strategyFile struct {
	Strategies []models.Strategy `yaml:"strategies"`
}

// ParseStrategies decodes a YAML strategy list
func ParseStrategies(r io.Reader) ([]models.Strategy, error) {
	var f strategyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode strategies: %w", err)
	}
	if len(f.Strategies) == 0 {
		return nil, models.NewConfigurationError("strategies", "file defines no strategies")
	}
	for i := range f.Strategies {
		if f.Strategies[i].Name == "" {
			f.Strategies[i].Name = fmt.Sprintf("strategy %d", i+1)
		}
	}
	return f.Strategies, nil
}

// ParseStrategiesFile reads a YAML strategy list from disk
func ParseStrategiesFile(filename string) ([]models.Strategy, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseStrategies(file)
}
