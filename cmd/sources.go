package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/spf13/cobra"
)

// sourcesCmd represents the sources command group
//
//nolint:gochecknoglobals // Cobra commands are typically global
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the source exports",
	Long:  `Commands for inspecting the xlsx and csv exports the report is built from.`,
}

// sourcesListCmd lists every discovered source with its row count and date range
//
//nolint:gochecknoglobals // Cobra commands are typically global
var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered sources",
	Long: `List every discovered source with its row count and the date range of its
records. Cache entries are refreshed first, so repeated calls are cheap.`,
	RunE: runSourcesList,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	svc, _, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	ctx := cmd.Context()

	files, err := svc.Discover()
	if err != nil {
		return err
	}

	if _, err := svc.Cache().EnsureFresh(ctx, files); err != nil {
		return err
	}

	extents, errs := svc.Catalog().Extents(ctx, files)

	byName := make(map[string]sources.Extent, len(extents))
	for _, e := range extents {
		byName[e.File.Name] = e
	}

	failed := make(map[string]error, len(errs))
	for _, e := range errs {
		failed[e.Source] = e.Err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tROWS\tFIRST\tLAST\tSTATUS")

	for _, f := range files {
		if e, ok := byName[f.Name]; ok {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				f.Name, e.Rows, e.Min.Format("2006-01-02 15:04:05"), e.Max.Format("2006-01-02 15:04:05"), "ok")

			continue
		}

		status := "no dated records"
		if err, ok := failed[f.Name]; ok {
			status = err.Error()
		}

		_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", f.Name, status)
	}

	_ = w.Flush()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%d sources, %d with dated records\n", len(files), len(extents))

	return nil
}
