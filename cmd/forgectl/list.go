// cmd/forgectl/list.go
package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/table"
)

type listOptions struct {
	search   string
	sort     string
	desc     bool
	page     int
	pageSize int
}

func newListCmd(global *globalOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of a catalog",
		Long: `List filters the stored catalog by a case-insensitive substring of any
field, sorts it by one field and prints the requested page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Filter rows containing this text")
	cmd.Flags().StringVar(&opts.sort, "sort", domain.FieldName, "Field to sort by")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", table.DefaultPageSize, "Rows per page")

	return cmd
}

func runList(cmd *cobra.Command, global *globalOptions, opts *listOptions) error {
	if opts.page < 1 {
		return fmt.Errorf("page must be at least 1")
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
	if _, ok := v.Field(opts.sort); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, opts.sort)
	}

	items, err := s.backend.Persistence[v.Name].Load(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	dir := table.Ascending
	if opts.desc {
		dir = table.Descending
	}

	page := table.ComputePage(items, v, table.Query{
		Search:    opts.search,
		SortKey:   opts.sort,
		Direction: dir,
		Page:      opts.page,
		PageSize:  opts.pageSize,
	})

	return printPage(cmd.OutOrStdout(), v, page)
}

func printPage(w io.Writer, v *domain.Variant, page table.Page) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	names := v.FieldNames()
	for i, name := range names {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, name)
	}
	fmt.Fprintln(tw)

	for _, item := range page.Items {
		for i, name := range names {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, v.FieldText(item, name))
		}
		fmt.Fprintln(tw)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "page %d of %d, %d matching %s\n",
		page.Page, page.TotalPages, page.FilteredCount, v.Name)
	return err
}
