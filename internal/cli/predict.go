package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

func (a *app) predictCommand() *cobra.Command {
	var (
		input, modelPath, modelID string
		documents, asJSON         bool
		top                       int
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Rank the labels of new documents with a trained model",
		Long: `Predict rebuilds the model's feature space over new text (same
vocabulary, training-time IDF and segmentation) and ranks every known label
per row. Labels present in the input are ignored.

Example:
  tidysupervise predict --model model.json --input new.csv
  tidysupervise predict --store sqlite://models.db --model-id 01J... --input new.csv --documents --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			m, err := loadModel(ctx, p, modelPath, modelID)
			if err != nil {
				return err
			}
			if input == "" {
				return errors.New("--input is required")
			}
			docs, err := corpus.LoadDocuments(input)
			if err != nil {
				return fmt.Errorf("load %s: %w", input, err)
			}

			preds, err := p.PredictTexts(ctx, m, docs)
			if err != nil {
				return err
			}
			if documents {
				preds = model.Aggregate(preds)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				for _, pr := range preds {
					if err := enc.Encode(pr); err != nil {
						return err
					}
				}
				return nil
			}

			table := newTable(w, []string{"document", "segment", "label", "probability"})
			for _, pr := range preds {
				for k, lp := range pr.Ranked {
					if top > 0 && k >= top {
						break
					}
					table.Append([]string{
						pr.DocumentID,
						strconv.Itoa(pr.SegmentID),
						lp.Label,
						fmt.Sprintf("%.4f", lp.Probability),
					})
				}
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "corpus to classify (CSV or TSV)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model artifact file")
	cmd.Flags().StringVar(&modelID, "model-id", "", "model id in --store")
	cmd.Flags().BoolVar(&documents, "documents", false, "average segment predictions per document")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON prediction per line")
	cmd.Flags().IntVar(&top, "top", 1, "labels shown per row in the table (0 = all)")
	return cmd
}
