package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethpandaops/tlareport/pkg/aggregate"
	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/report"
	"github.com/ethpandaops/tlareport/pkg/selection"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	reportOpts   selection.Options
	reportNotify bool
)

// reportCmd represents the report command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the failure report",
	Long: `Generate the failure report for a date window. Without window flags the
available date ranges are listed and the window is asked for interactively.

Examples:
  # Ask for the window
  tlareport report

  # The most recent day with data, plus a 14 day trend
  tlareport report --latest --trend-days 14

  # A fixed range, mailed to the recipient list
  tlareport report --start 2026-03-01 --end 2026-03-07 --notify`,
	RunE: runReport,
}

//nolint:gochecknoglobals // Console styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4FF"))

	countStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EF4444"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4B5563")).
			Padding(0, 1)
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportOpts.Start, "start", "", "first day of the report window (YYYY-MM-DD or a relative date like \"yesterday\")")
	reportCmd.Flags().StringVar(&reportOpts.End, "end", "", "last day of the report window, defaults to --start")
	reportCmd.Flags().BoolVar(&reportOpts.Latest, "latest", false, "report on the most recent day with data")
	reportCmd.Flags().BoolVar(&reportOpts.All, "all", false, "report on all available data")
	reportCmd.Flags().StringVar(&reportOpts.TrendStart, "trend-start", "", "first day of the trend window")
	reportCmd.Flags().StringVar(&reportOpts.TrendEnd, "trend-end", "", "last day of the trend window, defaults to --trend-start")
	reportCmd.Flags().IntVar(&reportOpts.TrendDays, "trend-days", 0, "trend over the N days ending on the report's last day")
	reportCmd.Flags().BoolVar(&reportNotify, "notify", false, "send the summary to the recipient list")
}

func runReport(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	ctx := cmd.Context()

	extents, err := svc.Extents(ctx)
	if err != nil {
		return err
	}

	window, trend, err := selectWindows(cmd, extents)
	if err != nil {
		return err
	}

	res, err := svc.Run(ctx, report.Request{
		Window: window,
		Trend:  trend,
		Notify: reportNotify,
	})

	if cfg.Metrics.Textfile != "" {
		if werr := observability.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.WithError(werr).Warn("Failed to write metrics textfile")
		}
	}

	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if res.NoData() {
		_, _ = fmt.Fprintf(out, "No data found for %s\n", window)

		return nil
	}

	_, _ = fmt.Fprintln(out, renderTop(res.Report.Result, cfg.Aggregation.TopN))
	_, _ = fmt.Fprintln(out, res.Summary)

	for _, w := range res.Report.Warnings {
		_, _ = fmt.Fprintln(out, mutedStyle.Render("warning: "+w))
	}

	if cfg.Output.Workbook != "" {
		_, _ = fmt.Fprintf(out, "Report saved as %s\n", cfg.Output.Workbook)
	}

	return nil
}

// selectWindows resolves the report and trend windows from flags, or asks
// for them when no window flag was given
func selectWindows(cmd *cobra.Command, extents []sources.Extent) (records.Window, *records.Window, error) {
	now := time.Now()

	if !reportOpts.Interactive() {
		window, err := selection.Resolve(&reportOpts, extents, now)
		if err != nil {
			return records.Window{}, nil, err
		}

		trend, err := selection.ResolveTrend(&reportOpts, window, now)

		return window, trend, err
	}

	prompter := selection.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	window, err := prompter.SelectWindow("the report", extents)
	if err != nil {
		return records.Window{}, nil, err
	}

	if reportOpts.HasTrend() {
		trend, err := selection.ResolveTrend(&reportOpts, window, now)

		return window, trend, err
	}

	ok, err := prompter.Confirm("\nWould you like to generate trend analysis?")
	if err != nil || !ok {
		return window, nil, err
	}

	trend, err := prompter.SelectWindow("trend analysis", extents)
	if err != nil {
		return records.Window{}, nil, err
	}

	return window, &trend, nil
}

// renderTop draws the console preview of the ranked categories
func renderTop(res *aggregate.Result, n int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Top %d failure categories", n)))
	b.WriteString("\n")

	if len(res.Top) == 0 {
		b.WriteString(mutedStyle.Render("no failures in this window"))

		return boxStyle.Render(b.String())
	}

	for i, c := range res.Top {
		if i > 0 {
			b.WriteString("\n")
		}

		_, _ = fmt.Fprintf(&b, "%d. %s  %s", i+1, c.Category, countStyle.Render(fmt.Sprintf("%d fails", c.Count)))
	}

	if res.Excluded > 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d failures excluded by list", res.Excluded)))
	}

	return boxStyle.Render(b.String())
}
