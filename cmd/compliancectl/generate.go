package main

import (
	"fmt"
	"io"
	"time"

	"food-compliance/internal/dataset"
	"food-compliance/internal/rules"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		out          string
		compliant    int
		nonCompliant int
		seed         uint64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a labeled synthetic product data set",
		Long: `Writes synthetic food products labeled by the compliance rules: a product
is not compliant when it is expired, lacks regulatory approval, or exceeds
5g of fat or 22.5g of sugar.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := rules.NewGenerator(seed, time.Now())
			rows, err := gen.Generate(compliant, nonCompliant)
			if err != nil {
				return err
			}

			if err := dataset.WriteFile(out, func(w io.Writer) error {
				return dataset.WriteLabeled(w, rows)
			}); err != nil {
				return err
			}

			a.logger.Info().
				Str("path", out).
				Int("compliant", compliant).
				Int("non_compliant", nonCompliant).
				Uint64("seed", seed).
				Msg("synthetic data generated")

			fmt.Fprintf(cmd.OutOrStdout(), "CSV file '%s' with %d records generated successfully.\n", out, len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "food_compliance_data.csv", "output CSV file")
	cmd.Flags().IntVar(&compliant, "compliant", 100, "number of low-risk records")
	cmd.Flags().IntVar(&nonCompliant, "non-compliant", 100, "number of high-risk records")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")

	return cmd
}
