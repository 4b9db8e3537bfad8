// cmd/forgectl/seed.go
package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

type seedOptions struct {
	file   string
	policy string
	all    bool
}

func newSeedCmd(global *globalOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write initial items to a catalog store",
		Long: `Seed writes a dataset to the store of one variant, or of every variant
named in the file with --all.

Without --file the built-in initial dataset is used. A seed file maps
variant names to item lists:

  postcards:
    - id: pc-001
      name: Golden Gate at Dusk
      category: Travel
      price: 2.49
      stock: 12

Items failing validation are skipped. With --policy empty (the default)
only an empty store is written; with --policy mismatch the store is also
replaced when its ids differ from the dataset's.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML seed file")
	cmd.Flags().StringVar(&opts.policy, "policy", string(ports.SeedWhenEmpty), "Seed policy: empty or mismatch")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Seed every variant present in the dataset")

	return cmd
}

func runSeed(cmd *cobra.Command, global *globalOptions, opts *seedOptions) error {
	policy, err := parseSeedPolicy(opts.policy)
	if err != nil {
		return err
	}

	datasets, err := loadDatasets(opts.file)
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

	targets := []string{global.variant}
	if opts.all {
		targets = targets[:0]
		for name := range datasets {
			targets = append(targets, name)
		}
		slices.Sort(targets)
	}

	for _, name := range targets {
		v, err := s.variant(name)
		if err != nil {
			return err
		}

		items, ok := datasets[v.Name]
		if !ok {
			return fmt.Errorf("dataset has no items for %q", v.Name)
		}

		n, err := s.backend.Persistence[v.Name].Seed(ctx, items, policy)
		if err != nil {
			return fmt.Errorf("seed %s: %w", v.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: seeded %d of %d items\n", v.Name, n, len(items))
	}
	return nil
}

func parseSeedPolicy(s string) (ports.SeedPolicy, error) {
	switch p := ports.SeedPolicy(s); p {
	case ports.SeedWhenEmpty, ports.SeedWhenMismatched:
		return p, nil
	}
	return "", fmt.Errorf("unknown seed policy %q (want %q or %q)", s, ports.SeedWhenEmpty, ports.SeedWhenMismatched)
}

// loadDatasets reads a seed file, or returns the built-in initial items of
// every variant when path is empty
func loadDatasets(path string) (map[string][]domain.Item, error) {
	if path == "" {
		datasets := make(map[string][]domain.Item, len(domain.Variants))
		for _, v := range domain.Variants {
			datasets[v.Name] = v.InitialItems()
		}
		return datasets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return parseDatasets(data)
}

func parseDatasets(data []byte) (map[string][]domain.Item, error) {
	var datasets map[string][]domain.Item
	if err := yaml.Unmarshal(data, &datasets); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("seed file holds no datasets")
	}

	for name := range datasets {
		if _, err := domain.VariantByName(name); err != nil {
			return nil, err
		}
	}
	return datasets, nil
}
