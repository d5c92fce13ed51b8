// Package report renders analysis reports for terminals and files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"race-strategy-engine/internal/models"
)

// Supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
)

// Write renders r in the given format.
func Write(w io.Writer, format string, r *models.Report) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		return WriteTable(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return WriteResultsCSV(w, r.Results)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteTable prints lap metrics, model diagnostics and the ranked strategies.
func WriteTable(w io.Writer, r *models.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "===== PER-LAP METRICS =====")
	fmt.Fprintln(tw, "LAP\tLAP TIME (s)\tAVG SPEED\tAVG TIRE TEMP\tBRAKE\tHIGH SLIP\tTRACTION LOSS\tSTRESS\t")
	for _, m := range r.Metrics {
		fmt.Fprintf(tw, "%d\t%.3f\t%.1f\t%.1f\t%.3f\t%.3f\t%.3f\t%.4f\t\n",
			m.Lap, m.LapTimeS, m.AvgSpeed, m.AvgTireTemp,
			m.BrakeDensity, m.HighSlipDensity, m.TractionLossDensity, m.TireStress)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	md := r.Model
	fmt.Fprintln(w)
	fmt.Fprintln(w, "===== DEGRADATION MODEL =====")
	fmt.Fprintf(w, "  Raw slope:              %.4f s/lap (%d fit laps)\n", md.RawRateSPerLap, md.FitLaps)
	if md.NegativeSlopeFloorApplied {
		fmt.Fprintf(w, "  Negative slope floored: %.4f s/lap\n", md.BaseDegSPerLap)
	}
	fmt.Fprintf(w, "  Mean tire stress:       %.4f (normalized %.3f)\n", md.MeanStress, md.StressNorm)
	fmt.Fprintf(w, "  Effective degradation:  %.4f s/lap\n", md.EffectiveDegRateSPerLap)
	fmt.Fprintf(w, "  Warm-up laps excluded:  %d\n", md.WarmupLaps)
	fmt.Fprintf(w, "  Reference base lap:     %.3f s\n", md.BaseLapTimeS)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "===== STRATEGY COMPARISON =====")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTRATEGY\tSTINTS\tTOTAL (s)\tLAPS\t")
	for i, res := range r.Results {
		laps := strconv.Itoa(res.LapsCovered)
		if res.CoverageMismatch {
			laps += "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\t\n", i+1, res.Strategy, res.Stints, res.TotalTimeS, laps)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if best, ok := r.Best(); ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "===== RECOMMENDED STRATEGY =====")
		fmt.Fprintf(w, "  Target race length: %d laps\n", r.TargetRaceLaps)
		fmt.Fprintf(w, "  Assumed pit loss:   %.1f s\n", r.PitLossS)
		fmt.Fprintf(w, "  Best strategy:      %s\n", best.Strategy)
		fmt.Fprintf(w, "  Stints:             %s\n", best.Stints)
		fmt.Fprintf(w, "  Estimated total:    %.2f s\n", best.TotalTimeS)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  - %s\n", wn)
		}
	}
	return nil
}

// WriteResultsCSV writes ranked results as CSV.
func WriteResultsCSV(w io.Writer, results []models.StrategyResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "strategy", "stints", "total_time_s", "laps_covered", "coverage_mismatch"}); err != nil {
		return err
	}
	for i, r := range results {
		rec := []string{
			strconv.Itoa(i + 1),
			r.Strategy,
			r.Stints,
			strconv.FormatFloat(r.TotalTimeS, 'f', 3, 64),
			strconv.Itoa(r.LapsCovered),
			strconv.FormatBool(r.CoverageMismatch),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
