package qos

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/1ureka/ferry/internal/util"
)

// Rows returns the report as label/value pairs, header row first.
func (r Report) Rows() pterm.TableData {
	return pterm.TableData{
		{"QoS Metric", "Value"},
		{"Average Round Trip Time", fmt.Sprintf("%.6f seconds", r.Mean.Seconds())},
		{"Standard Deviation of Round Trip Time", fmt.Sprintf("%.6f seconds", r.StdDev.Seconds())},
		{"Minimum / Maximum Round Trip Time", fmt.Sprintf("%.6f / %.6f seconds", r.Min.Seconds(), r.Max.Seconds())},
		{"Packet Loss Rate", fmt.Sprintf("%.2f%%", r.LossRate*100)},
		{"Total Time Spent", fmt.Sprintf("%.6f seconds", r.Total.Seconds())},
		{"Acknowledged / Attempted", fmt.Sprintf("%d / %d", r.Count, r.Attempted)},
	}
}

// Render prints the report as a table. A report without samples prints a
// warning instead.
func (r Report) Render() error {
	if r.NoData {
		util.LogWarning("No round trip times recorded. (%d attempted, loss %.2f%%)", r.Attempted, r.LossRate*100)
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(r.Rows()).Render()
}
