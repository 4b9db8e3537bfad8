// cmd/forgectl/export.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/table"
	"github.com/ammerola/data-forge/internal/export"
)

type exportOptions struct {
	format string
	out    string
	search string
}

func newExportCmd(global *globalOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a catalog to a CSV, JSON or XLSX file",
		Long: `Export writes the stored rows matching --search, in collection order, to a
file. Use --out - to write to standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", string(export.FormatCSV), "Output format: csv, json or xlsx")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output path (default <variant>.<ext>)")
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Export only rows containing this text")

	return cmd
}

func runExport(cmd *cobra.Command, global *globalOptions, opts *exportOptions) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd, global)
	defer cancel()

	s, err := openSession(ctx, global, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.variant(global.variant)
	if err != nil {
		return err
	}

	items, err := s.backend.Persistence[v.Name].Load(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	rows := table.Filter(items, v, opts.search)
	if len(rows) == 0 {
		return fmt.Errorf("no %s match %q", v.Name, opts.search)
	}

	sheet := s.cfg.Export.SheetName
	if sheet == "" {
		sheet = v.Name
	}
	data, err := export.Encode(format, export.RecordsFor(v, rows), sheet)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = format.Filename(v.Name)
	}
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d %s to %s\n", len(rows), v.Name, out)
	return nil
}
