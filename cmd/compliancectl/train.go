package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"food-compliance/internal/artifact"
	"food-compliance/internal/config"
	"food-compliance/internal/dataset"
	"food-compliance/internal/feature"
	"food-compliance/internal/tokenizer"
	"food-compliance/internal/training"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		data       string
		modelDir   string
		configFile string
		publish    bool
		maxLength  int

		epochs       int
		batchSize    int
		learningRate float64
		seed         uint64
		testSplit    float64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier on a labeled CSV file",
		Long: `Trains the compliance classifier, prints the class distribution of the
train and test splits and the test set classification report, and saves the
model artifact to --model-dir.

Hyperparameters come from TRAIN_* environment variables, then --config, then
command line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := trainingOptions(a.cfg.Training)
			if configFile != "" {
				if err := loadOptions(configFile, &opts); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("epochs") {
				opts.Epochs = epochs
			}
			if flags.Changed("batch-size") {
				opts.BatchSize = batchSize
			}
			if flags.Changed("learning-rate") {
				opts.LearningRate = learningRate
			}
			if flags.Changed("seed") {
				opts.Seed = seed
			}
			if flags.Changed("test-split") {
				opts.TestSplit = testSplit
			}
			opts.OutputDir = modelDir

			if publish && !a.cfg.S3.Enabled {
				return fmt.Errorf("--publish requires S3_ENABLED and S3_BUCKET")
			}

			records, err := dataset.ReadLabeledFile(data)
			if err != nil {
				return err
			}

			tok, err := tokenizer.New(tokenizer.DefaultVocab(), tokenizer.DefaultConfig(), a.logger)
			if err != nil {
				return err
			}
			if tok, err = tok.WithMaxLength(maxLength); err != nil {
				return err
			}

			res, err := training.NewTrainer(tok, a.logger).Train(cmd.Context(), feature.BuildExamples(records), opts)
			if err != nil {
				return err
			}

			printTrainingResult(cmd.OutOrStdout(), res)

			if publish {
				client, err := artifact.NewS3Client(cmd.Context(), a.cfg.S3.Region)
				if err != nil {
					return err
				}
				pub := artifact.NewS3Publisher(client, a.cfg.S3.Bucket, a.cfg.S3.Prefix, a.logger)
				if err := pub.Publish(cmd.Context(), modelDir, filepath.Base(modelDir)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nModel %s published to s3://%s/%s%s\n",
					res.Metadata.ID, a.cfg.S3.Bucket, a.cfg.S3.Prefix, filepath.Base(modelDir))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "products.csv", "labeled CSV file")
	cmd.Flags().StringVar(&modelDir, "model-dir", "compliance_doc_model", "output model directory")
	cmd.Flags().StringVar(&configFile, "config", "", "YAML file with training options")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload the trained model to S3")
	cmd.Flags().IntVar(&maxLength, "max-length", tokenizer.DefaultMaxLength, "maximum sequence length in tokens")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "number of epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "mini-batch size")
	cmd.Flags().Float64Var(&learningRate, "learning-rate", 0, "optimizer learning rate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for splitting, initialisation and shuffling")
	cmd.Flags().Float64Var(&testSplit, "test-split", 0, "fraction of rows held out for evaluation")

	return cmd
}

// trainingOptions starts from the defaults and applies the environment.
func trainingOptions(cfg config.TrainingConfig) training.Options {
	opts := training.DefaultOptions()
	opts.Epochs = cfg.Epochs
	opts.BatchSize = cfg.BatchSize
	opts.LearningRate = cfg.LearningRate
	opts.Seed = uint64(cfg.Seed)
	opts.TestSplit = cfg.TestSplit
	return opts
}

// loadOptions overlays the options found in a YAML file onto opts. Unknown
// keys are rejected.
func loadOptions(path string, opts *training.Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open training config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse training config %s: %w", path, err)
	}
	return nil
}

func printTrainingResult(w io.Writer, res *training.Result) {
	for i, loss := range res.EpochLosses {
		fmt.Fprintf(w, "Epoch %d completed. Average Loss: %.4f\n", i+1, loss)
	}

	names := training.ComplianceLabels().Names()

	fmt.Fprintln(w, "\nTraining set class distribution:")
	for _, name := range names {
		fmt.Fprintf(w, "%-15s %d\n", name, res.TrainDistribution[name])
	}

	fmt.Fprintln(w, "\nTest set class distribution:")
	for _, name := range names {
		fmt.Fprintf(w, "%-15s %d\n", name, res.TestDistribution[name])
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, res.Report.String())
}
