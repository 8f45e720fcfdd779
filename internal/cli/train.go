package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) trainCommand() *cobra.Command {
	var input, out string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on a labelled corpus",
		Long: `Train builds the vocabulary and the tf-idf feature matrix of the labelled
documents of a corpus and fits the configured classifier strategy.
Unlabelled documents are skipped.

Example:
  tidysupervise train --input corpus.csv --out model.json
  tidysupervise train --input corpus.tsv --store sqlite://models.db --strategy svm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			recs, err := records(p, input)
			if err != nil {
				return err
			}
			m, x, err := p.Train(ctx, recs)
			if err != nil {
				return err
			}
			if out != "" {
				if err := m.SaveFile(out); err != nil {
					return fmt.Errorf("write model: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Model:    %s\n", m.ID())
			fmt.Fprintf(w, "Strategy: %s\n", m.Strategy())
			fmt.Fprintf(w, "Labels:   %s\n", strings.Join(m.Labels(), ", "))
			fmt.Fprintf(w, "Features: %d rows x %d terms\n", x.Len(), x.NumColumns())
			if out != "" {
				fmt.Fprintf(w, "Saved:    %s\n", out)
			}
			if p.Store() != nil {
				fmt.Fprintf(w, "Stored:   %s\n", a.dsn)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "labelled corpus (CSV or TSV)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the model artifact here (.json or .yaml)")
	return cmd
}
