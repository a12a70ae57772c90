package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
)

// TimestampLayout is the UTC layout used in terminal and file output.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

const (
	singleBlockNote         = "Note: A single high-difficulty block may suffice."
	testnet4SingleBlockNote = "Note: A single high-difficulty block may suffice due to Testnet4's 20-minute rule."
)

// SingleBlockNote returns the note printed when one block outweighs the
// reorged chain. Only Testnet4 has the 20-minute minimum difficulty rule.
func SingleBlockNote(network model.Network) string {
	if network == model.NetworkTestnet4 || network == "" {
		return testnet4SingleBlockNote
	}
	return singleBlockNote
}

// Display writes a human-readable summary of calc to w.
func Display(w io.Writer, network model.Network, calc model.ReorgCalculation, providedHashrate float64) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n=== %s Reorg Calculation ===\n", network.DisplayName())
	fmt.Fprintf(&b, "Timestamp: %s\n", calc.Timestamp.UTC().Format(TimestampLayout))
	fmt.Fprintf(&b, "Fork Height: %d\n", calc.ForkHeight)
	fmt.Fprintf(&b, "Current Height: %d\n", calc.CurrentHeight)
	fmt.Fprintf(&b, "Blocks to Reorg: %d\n", calc.BlocksToReorg)
	fmt.Fprintf(&b, "Total Existing Chain Work: %.2f\n", calc.TotalWork.Float64())
	fmt.Fprintf(&b, "Current Difficulty: %.2f\n", calc.CurrentDifficulty.Float64())
	fmt.Fprintf(&b, "New Chain Blocks Needed: %.0f\n", calc.BlocksNeeded)
	b.WriteString("\n")
	fmt.Fprintf(&b, "=== With Your Hashrate (%s) ===\n", FormatHashrate(providedHashrate))
	fmt.Fprintf(&b, "Time Required: %.2f hours (%.2f days)\n", calc.TimeRequiredHours, calc.TimeRequiredDays)
	b.WriteString("\n")
	fmt.Fprintf(&b, "=== For Target Time (%s days) ===\n", FormatDays(calc.TargetDays))
	fmt.Fprintf(&b, "Hashrate Required: %s\n", FormatHashrate(calc.HashrateRequired))

	if calc.SingleBlockSuffices() {
		b.WriteString("\n" + SingleBlockNote(network) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
