package main

import (
	"fmt"

	"kart-checkout/internal/app"

	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the payment method catalog",
	}

	seed := &cobra.Command{
		Use:   "seed [path]",
		Short: "Upsert payment methods from a YAML or JSON seed file",
		Long: `Upsert payment methods from a seed document.

The path is read from S3 (S3_PREFIX + path) when S3_ENABLED is set and
falls back to the local file system. Gzipped files (.gz) are accepted.

Examples:
  kartctl catalog seed seeds/payment_methods.yaml
  kartctl catalog seed
  kartctl catalog seed --defaults`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, _ := cmd.Flags().GetBool("defaults")
			if defaults && len(args) > 0 {
				return fmt.Errorf("--defaults does not take a path")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				if defaults {
					n, err := a.SeedDefaults(cmd.Context())
					if err != nil {
						return fmt.Errorf("seed failed: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d built-in payment methods\n", n)
					return nil
				}
				path := a.Config.Catalog.SeedPath
				if len(args) == 1 {
					path = args[0]
				}
				n, err := a.SeedCatalog(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("seed failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d payment methods from %s\n", n, path)
				return nil
			})
		},
	}

	seed.Flags().Bool("defaults", false, "seed the built-in catalog instead of a file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List payment methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return withApp(cmd.Context(), func(a *app.App) error {
				methods, err := a.Catalog.List(cmd.Context(), !all)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), methods)
			})
		},
	}
	list.Flags().Bool("all", false, "include inactive methods")

	cmd.AddCommand(seed, list)
	return cmd
}
