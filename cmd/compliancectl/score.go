package main

import (
	"fmt"
	"io"

	"food-compliance/internal/artifact"
	"food-compliance/internal/dataset"
	"food-compliance/internal/feature"
	"food-compliance/internal/inference"
	"food-compliance/internal/tokenizer"

	"github.com/spf13/cobra"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		data     string
		modelDir string
		out      string
		head     int
		withProb bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Classify every product of a CSV file",
		Long: `Classifies the products of --data with the model in --model-dir and writes
the feature text and predicted label of each row to --out, in input order.
With --with-probability a third column holds the probability of the label.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			records, err := dataset.ReadProductsFile(data)
			if err != nil {
				return err
			}

			src, name := artifact.NewSource(ctx, a.cfg.S3, modelDir, a.logger)
			art, err := artifact.Load(ctx, src, name, a.logger)
			if err != nil {
				return err
			}
			if err := artifact.ConfigureTokenizer(art, a.cfg.Model.MaxLength, tokenizer.Padding(a.cfg.Model.Padding)); err != nil {
				return err
			}

			clf, err := inference.New(art, a.logger)
			if err != nil {
				return err
			}

			var (
				n     int
				write func(io.Writer, int) error
			)
			if withProb {
				preds, err := clf.Scores(ctx, records)
				if err != nil {
					return err
				}
				rows := dataset.NewScoredRows(preds)
				n = len(rows)
				write = func(w io.Writer, limit int) error {
					return dataset.WriteScored(w, dataset.Head(rows, limit))
				}
			} else {
				texts := feature.BuildTexts(records)
				labels, err := clf.ClassifyTexts(ctx, texts)
				if err != nil {
					return err
				}
				rows, err := dataset.NewPredictionRows(texts, labels)
				if err != nil {
					return err
				}
				n = len(rows)
				write = func(w io.Writer, limit int) error {
					return dataset.WritePredictions(w, dataset.Head(rows, limit))
				}
			}

			if err := dataset.WriteFile(out, func(w io.Writer) error {
				return write(w, n)
			}); err != nil {
				return err
			}

			a.logger.Info().
				Str("path", out).
				Int("rows", n).
				Str("model_id", clf.ModelID().String()).
				Msg("predictions written")

			if head > 0 {
				if err := write(cmd.OutOrStdout(), head); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Predictions saved to '%s'.\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "food_compliance_data.csv", "product CSV file")
	cmd.Flags().StringVar(&modelDir, "model-dir", "compliance_doc_model", "model directory")
	cmd.Flags().StringVar(&out, "out", "compliance_predictions.csv", "output CSV file")
	cmd.Flags().IntVar(&head, "head", 5, "number of predictions to print")
	cmd.Flags().BoolVar(&withProb, "with-probability", false, "add the probability of each predicted label")

	return cmd
}
