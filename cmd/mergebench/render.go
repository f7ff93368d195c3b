package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

func printScenario(w io.Writer, sc Scenario) {
	printSectionHeader(w, fmt.Sprintf("SCENARIO %s", strings.ToUpper(sc.Name)),
		fmt.Sprintf("  • %d sequences × %s elements, merging %s per iteration",
			sc.Sequences, formatNumber(sc.Length), formatNumber(sc.mergeSize())),
		fmt.Sprintf("  • workers %v, %d iterations, stable=%v", sc.Workers, sc.Iterations, sc.Stable))
}

// renderResults prints the ranked results table followed by any failures.
func renderResults(w io.Writer, results []result) {
	var fastest time.Duration
	succeeded := 0
	for _, r := range results {
		if r.err == nil {
			if succeeded == 0 {
				fastest = r.median
			}
			succeeded++
		}
	}

	if succeeded == 0 {
		_, _ = red.Fprintln(w, "No configuration completed successfully!")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("Rank", "Splitting", "Executor", "Workers", "Median", "Fastest", "Elements/sec", "vs Fastest")
		for _, r := range results {
			if r.err != nil {
				continue
			}
			_ = table.Append(
				getRankIcon(r.rank),
				r.cell.splitting.String(),
				r.cell.executor,
				fmt.Sprintf("%d", r.workers),
				formatLatency(r.median),
				formatLatency(r.fastest),
				formatNumber(int(r.throughput())),
				getVsFastestStr(r.median, fastest, r.rank),
			)
		}
		if err := table.Render(); err != nil {
			_, _ = red.Fprintln(w, "Error in rendering results table")
		}
	}

	failed := len(results) - succeeded
	if failed > 0 {
		fmt.Fprintln(w)
		_, _ = red.Fprintln(w, "⚠️  Failed configurations:")
		for _, r := range results {
			if r.err != nil {
				_, _ = red.Fprintf(w, "  • %s: %v\n", r.cell, r.err)
			}
		}
	}
	fmt.Fprintln(w)
	_, _ = green.Fprintf(w, "✅ %d/%d configurations completed\n", succeeded, len(results))
}

func getRankIcon(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d", rank)
	}
}

func getVsFastestStr(t, fastest time.Duration, rank int) string {
	if rank == 1 || fastest <= 0 {
		return "baseline"
	}
	return fmt.Sprintf("%.2fx", float64(t)/float64(fastest))
}

func printSectionHeader(w io.Writer, title string, descriptions ...string) {
	fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "═══════════════════════════════════════════════════════════")
	_, _ = bold.Fprintln(w, title)
	_, _ = bold.Fprintln(w, "═══════════════════════════════════════════════════════════")
	for _, desc := range descriptions {
		fmt.Fprintln(w, desc)
	}
	fmt.Fprintln(w)
}

// formatNumber formats an integer with comma separators.
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	var result strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 && s[i-1] != '-' {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatLatency formats a duration in the most appropriate unit.
func formatLatency(d time.Duration) string {
	ns := d.Nanoseconds()
	switch {
	case ns == 0:
		return "0"
	case ns < 1000:
		return fmt.Sprintf("%dns", ns)
	case ns < 1_000_000:
		return fmt.Sprintf("%.1fµs", float64(ns)/1000)
	case ns < 1_000_000_000:
		return fmt.Sprintf("%.2fms", float64(ns)/1_000_000)
	default:
		return fmt.Sprintf("%.2fs", float64(ns)/1_000_000_000)
	}
}
