package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCalc() model.ReorgCalculation {
	return model.ReorgCalculation{
		ForkHeight:        990,
		CurrentHeight:     1000,
		BlocksToReorg:     11,
		TotalWork:         22,
		CurrentDifficulty: 2,
		BlocksNeeded:      11,
		TimeRequiredHours: 6600.0 / 3600,
		TimeRequiredDays:  6600.0 / 86400,
		HashrateRequired:  2.5e12,
		TargetDays:        3,
		Timestamp:         time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestFormatHashrate(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1e15, "1.00 PH/s"},
		{2.346e15, "2.35 PH/s"},
		{1e12, "1.00 TH/s"},
		{999e12, "999.00 TH/s"},
		{1.5e9, "1.50 GH/s"},
		{999999999, "999999999 H/s"},
		{12.4, "12 H/s"},
		{0, "0 H/s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatHashrate(tt.in), "input %v", tt.in)
	}
}

func TestDisplay(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Display(&buf, model.NetworkTestnet4, sampleCalc(), 1e15))

	out := buf.String()
	assert.Contains(t, out, "=== Testnet4 Reorg Calculation ===")
	assert.Contains(t, out, "Timestamp: 2025-03-01 12:30:00 UTC")
	assert.Contains(t, out, "Fork Height: 990")
	assert.Contains(t, out, "Blocks to Reorg: 11")
	assert.Contains(t, out, "Total Existing Chain Work: 22.00")
	assert.Contains(t, out, "Current Difficulty: 2.00")
	assert.Contains(t, out, "New Chain Blocks Needed: 11")
	assert.Contains(t, out, "=== With Your Hashrate (1.00 PH/s) ===")
	assert.Contains(t, out, "Time Required: 1.83 hours (0.08 days)")
	assert.Contains(t, out, "=== For Target Time (3 days) ===")
	assert.Contains(t, out, "Hashrate Required: 2.50 TH/s")
	assert.NotContains(t, out, "single high-difficulty block")
}

func TestDisplay_SingleBlockNote(t *testing.T) {
	calc := sampleCalc()
	calc.BlocksNeeded = 1
	calc.TargetDays = 0.5

	var buf bytes.Buffer
	require.NoError(t, Display(&buf, model.NetworkSignet, calc, 1e15))
	assert.Contains(t, buf.String(), "=== Signet Reorg Calculation ===")
	assert.Contains(t, buf.String(), "=== For Target Time (0.5 days) ===")
	assert.Contains(t, buf.String(), "Note: A single high-difficulty block may suffice.\n")
	assert.NotContains(t, buf.String(), "20-minute rule")

	buf.Reset()
	require.NoError(t, Display(&buf, model.NetworkTestnet4, calc, 1e15))
	assert.Contains(t, buf.String(), "due to Testnet4's 20-minute rule")
}

func TestSingleBlockNote(t *testing.T) {
	assert.Contains(t, SingleBlockNote(model.NetworkTestnet4), "Testnet4's 20-minute rule")
	assert.Contains(t, SingleBlockNote(""), "Testnet4's 20-minute rule")
	assert.NotContains(t, SingleBlockNote(model.NetworkMainnet), "20-minute")
	assert.NotContains(t, SingleBlockNote(model.NetworkSignet), "20-minute")
}

func TestFileWriter_AppendCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	w := NewFileWriter(path, model.NetworkTestnet4, nil)
	runAt := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)

	first := uuid.New()
	require.NoError(t, w.Append(first, runAt, []model.ReorgCalculation{sampleCalc()}, 1e15))

	second := uuid.New()
	calcs := []model.ReorgCalculation{sampleCalc(), sampleCalc()}
	require.NoError(t, w.Append(second, runAt, calcs, 1e15))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "=== Testnet4 Reorg Calculations - 2025-03-01 13:00:00 UTC (run "+first.String()+") ===")
	assert.Contains(t, out, "(run "+second.String()+")")
	assert.Less(t, strings.Index(out, first.String()), strings.Index(out, second.String()))
	assert.Equal(t, 3, strings.Count(out, "\n---\n"))
	assert.Equal(t, 3, strings.Count(out, "Fork Height: 990\n"))
	assert.Contains(t, out, "Total Work: 22.00\n")
	assert.Contains(t, out, "Blocks Needed: 11\n")
	assert.Contains(t, out, "Time Required (1.00 PH/s): 0.08 days\n")
	assert.Contains(t, out, "Hashrate for 3 days: 2.50 TH/s\n")
	assert.Contains(t, out, "Timestamp: 2025-03-01 12:30:00 UTC\n")
}

func TestFileWriter_EmptyRunStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	w := NewFileWriter(path, model.NetworkTestnet4, nil)

	require.NoError(t, w.Append(uuid.New(), time.Now(), nil, 1e15))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Reorg Calculations - ")
	assert.NotContains(t, string(data), "---")
}

func TestFileWriter_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultOutputFile, NewFileWriter("", model.NetworkTestnet4, nil).Path())
}

func TestFileWriter_OpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	err := NewFileWriter(path, model.NetworkTestnet4, nil).Append(uuid.New(), time.Now(), nil, 1)
	assert.Error(t, err)
}
