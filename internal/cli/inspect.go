package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/inspect"
)

func (a *app) inspectCommand() *cobra.Command {
	var (
		modelPath, modelID, label string
		top                       int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the most discriminative terms of each label",
		Long: `Inspect lists, per label, the terms with the largest absolute weight in a
trained model. Positive weights are evidence for the label, negative weights
evidence against it.

Example:
  tidysupervise inspect --model model.json --top 10
  tidysupervise inspect --model model.json --label sport`,
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

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Model %s (%s, %d terms)\n", m.ID(), m.Strategy(), m.Vocabulary().Len())
			table := newTable(w, []string{"label", "rank", "term", "weight"})
			for _, lt := range inspect.New(m).TopTerms(top) {
				if label != "" && lt.Label != label {
					continue
				}
				for i, tw := range lt.Terms {
					table.Append([]string{lt.Label, strconv.Itoa(i + 1), tw.Term, fmt.Sprintf("%+.4f", tw.Weight)})
				}
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model artifact file")
	cmd.Flags().StringVar(&modelID, "model-id", "", "model id in --store")
	cmd.Flags().StringVar(&label, "label", "", "only this label")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "terms per label (0 = all)")
	return cmd
}
