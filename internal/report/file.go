package report

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/google/uuid"
)

// DefaultOutputFile is where results are appended when nothing else is set.
const DefaultOutputFile = "reorg_calculations.txt"

// FileWriter appends calculation runs to a plain text file.
type FileWriter struct {
	path    string
	network model.Network
	logger  *slog.Logger
}

func NewFileWriter(path string, network model.Network, logger *slog.Logger) *FileWriter {
	if path == "" {
		path = DefaultOutputFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWriter{
		path:    path,
		network: network,
		logger:  logger.With("component", "report_file"),
	}
}

func (f *FileWriter) Path() string {
	return f.path
}

// Append writes one run header followed by calcs. The file is created if
// missing and never truncated.
func (f *FileWriter) Append(runID uuid.UUID, runAt time.Time, calcs []model.ReorgCalculation, providedHashrate float64) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== %s Reorg Calculations - %s (run %s) ===\n",
		f.network.DisplayName(), runAt.UTC().Format(TimestampLayout), runID)

	for _, c := range calcs {
		fmt.Fprintf(&b, "\nFork Height: %d\n", c.ForkHeight)
		fmt.Fprintf(&b, "Current Height: %d\n", c.CurrentHeight)
		fmt.Fprintf(&b, "Blocks to Reorg: %d\n", c.BlocksToReorg)
		fmt.Fprintf(&b, "Total Work: %.2f\n", c.TotalWork.Float64())
		fmt.Fprintf(&b, "Current Difficulty: %.2f\n", c.CurrentDifficulty.Float64())
		fmt.Fprintf(&b, "Blocks Needed: %.0f\n", c.BlocksNeeded)
		fmt.Fprintf(&b, "Time Required (%s): %.2f days\n", FormatHashrate(providedHashrate), c.TimeRequiredDays)
		fmt.Fprintf(&b, "Hashrate for %s days: %s\n", FormatDays(c.TargetDays), FormatHashrate(c.HashrateRequired))
		fmt.Fprintf(&b, "Timestamp: %s\n", c.Timestamp.UTC().Format(TimestampLayout))
		b.WriteString("---\n")
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file %s: %w", f.path, err)
	}
	if _, err := file.WriteString(b.String()); err != nil {
		file.Close()
		return fmt.Errorf("write output file %s: %w", f.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output file %s: %w", f.path, err)
	}

	f.logger.Info("results saved", "path", f.path, "run_id", runID.String(), "records", len(calcs))
	return nil
}
