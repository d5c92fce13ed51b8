package parser

import (
	"sort"
	"strings"

	"race-strategy-engine/internal/models"
)

// Canonical processed-telemetry column names.
const (
	ColLap          = "lap"
	ColTime         = "time_s"
	ColSpeed        = "speed"
	ColBrakeEvent   = "brake_event"
	ColTireSlip     = "tire_slip_avg"
	ColTractionLoss = "traction_loss"
	ColTireTemp     = "tire_temp_avg"
)

// RequiredColumns lists the columns every processed table must carry.
var RequiredColumns = []string{ColLap, ColTime, ColSpeed, ColBrakeEvent, ColTireSlip, ColTractionLoss, ColTireTemp}

// columnAliases maps each canonical column to accepted header spellings,
// matched case-insensitively. The canonical name always matches first.
var columnAliases = map[string][]string{
	ColLap:          {"lap_number", "lapnumber", "lap_id"},
	ColTime:         {"time", "timestamp_s", "elapsed_s"},
	ColSpeed:        {"velocity", "speed_kmh"},
	ColBrakeEvent:   {"brake_flag", "braking"},
	ColTireSlip:     {"slip_avg", "tyre_slip_avg"},
	ColTractionLoss: {"traction_loss_flag"},
	ColTireTemp:     {"tire_temp", "tyre_temp_avg", "tire_temp_c"},
}

// ResolveColumns maps canonical column names to header indices. A missing
// required column is a ConfigurationError naming every absent column.
func ResolveColumns(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := byName[key]; !seen {
			byName[key] = i
		}
	}

	indices := make(map[string]int, len(RequiredColumns))
	var missing []string
	for _, col := range RequiredColumns {
		if idx, ok := byName[col]; ok {
			indices[col] = idx
			continue
		}
		found := false
		for _, alias := range columnAliases[col] {
			if idx, ok := byName[alias]; ok {
				indices[col] = idx
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, models.NewConfigurationError(strings.Join(missing, ","), "required column missing from telemetry header")
	}
	return indices, nil
}
