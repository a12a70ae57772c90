package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/report"
)

// RunSummary builds the alert sent when a calculation run finishes.
// runErr takes precedence; otherwise calcs decides between a viable and a
// no-viable summary.
func RunSummary(network model.Network, runID string, calcs []model.ReorgCalculation, hashrate, maxDays float64, runErr error) Alert {
	a := Alert{
		Network: network.String(),
		RunID:   runID,
		Fields: map[string]string{
			"hashrate": report.FormatHashrate(hashrate),
			"max_days": report.FormatDays(maxDays),
		},
	}

	switch {
	case runErr != nil:
		a.Type = AlertTypeEvaluationFailed
		a.Title = "Reorg evaluation failed"
		a.Message = runErr.Error()
	case len(calcs) == 0:
		a.Type = AlertTypeNoViableFork
		a.Title = "No viable fork height"
		a.Message = fmt.Sprintf("No fork height reorgs within %s days at %s",
			report.FormatDays(maxDays), report.FormatHashrate(hashrate))
	default:
		a.Type = AlertTypeViableFork
		a.Title = fmt.Sprintf("%d viable fork height(s)", len(calcs))
		heights := make([]string, 0, len(calcs))
		fastest := calcs[0]
		for _, c := range calcs {
			heights = append(heights, strconv.FormatUint(c.ForkHeight, 10))
			if c.TimeRequiredDays < fastest.TimeRequiredDays {
				fastest = c
			}
		}
		a.Message = "Fork heights: " + strings.Join(heights, ", ")
		a.Fields["current_height"] = strconv.FormatUint(fastest.CurrentHeight, 10)
		a.Fields["fastest_days"] = fmt.Sprintf("%.2f", fastest.TimeRequiredDays)
	}
	return a
}
