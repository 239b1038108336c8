package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/ethpandaops/tlareport/pkg/cache"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var cacheRefreshForce bool

// cacheCmd represents the cache command group
//
//nolint:gochecknoglobals // Cobra commands are typically global
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the parquet cache",
	Long:  `Commands for inspecting and rebuilding the per-source parquet cache.`,
}

// cacheRefreshCmd rebuilds missing and stale entries
//
//nolint:gochecknoglobals // Cobra commands are typically global
var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild missing and stale cache entries",
	Long:  `Rebuild the cache entry of every source whose export changed since it was cached. With --force every entry is rebuilt.`,
	RunE:  runCacheRefresh,
}

// cacheStatusCmd shows the state of every entry
//
//nolint:gochecknoglobals // Cobra commands are typically global
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cache state of every source",
	Long:  `Show whether each source's cache entry is fresh, stale or missing, without modifying anything.`,
	RunE:  runCacheStatus,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheRefreshCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	cacheRefreshCmd.Flags().BoolVar(&cacheRefreshForce, "force", false, "rebuild every entry, fresh or not")
}

func runCacheRefresh(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	if !cfg.Cache.Enabled {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled, nothing to refresh")

		return nil
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if cacheRefreshForce {
		files, err := svc.Discover()
		if err != nil {
			return err
		}

		failed := 0

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}

			entry, err := svc.Cache().Rebuild(ctx, f)

			switch {
			case err != nil:
				failed++

				_, _ = fmt.Fprintf(out, "✗ %s: %v\n", f.Name, err)
			case entry == nil:
				_, _ = fmt.Fprintf(out, "- %s: no rows\n", f.Name)
			default:
				_, _ = fmt.Fprintf(out, "✓ %s: %d rows\n", f.Name, entry.Rows)
			}
		}

		_, _ = fmt.Fprintf(out, "\n%d rebuilt, %d failed\n", len(files)-failed, failed)

		return nil
	}

	report, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	for _, name := range report.Rebuilt {
		_, _ = fmt.Fprintf(out, "✓ %s: rebuilt\n", name)
	}

	for _, name := range report.Empty {
		_, _ = fmt.Fprintf(out, "- %s: no rows\n", name)
	}

	failed := make([]string, 0, len(report.Failed))
	for name := range report.Failed {
		failed = append(failed, name)
	}

	sort.Strings(failed)

	for _, name := range failed {
		_, _ = fmt.Fprintf(out, "✗ %s: %v\n", name, report.Failed[name])
	}

	_, _ = fmt.Fprintf(out, "\n%d fresh, %d rebuilt, %d empty, %d failed\n",
		len(report.Fresh), len(report.Rebuilt), len(report.Empty), len(report.Failed))

	return nil
}

func runCacheStatus(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	files, err := svc.Discover()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATE\tROWS\tFIRST\tLAST\tSOURCE MODIFIED")

	counts := make(map[cache.State]int)

	for _, st := range svc.Cache().Status(files) {
		counts[st.State]++

		if st.Entry == nil {
			_, _ = fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%s\n",
				st.Source.Name, st.State, st.Source.ModTime.Format("2006-01-02 15:04:05"))

			continue
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			st.Source.Name, st.State, st.Entry.Rows,
			st.Entry.Min.Format("2006-01-02"), st.Entry.Max.Format("2006-01-02"),
			st.Source.ModTime.Format("2006-01-02 15:04:05"))
	}

	_ = w.Flush()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\ncache dir %s: %d fresh, %d stale, %d missing\n",
		cfg.Cache.Dir, counts[cache.StateFresh], counts[cache.StateStale], counts[cache.StateMissing])

	return nil
}
