package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/evaluate"
)

func (a *app) evaluateCommand() *cobra.Command {
	var (
		input         string
		misclassified bool
		confused      int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Train on a share of a labelled corpus and score the rest",
		Long: `Evaluate splits the labelled rows with a seeded shuffle, trains on
prop_train percent of them and predicts the others. It prints the overall
accuracy, the confusion table and the per-label accuracy.

Example:
  tidysupervise evaluate --input corpus.csv --prop-train 75 --seed 3`,
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
			res, err := p.Evaluate(ctx, recs)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, summaryStyle(res.Accuracy).Sprint(res.Summary()))
			fmt.Fprintln(w)
			renderConfusion(w, res.Confusion)
			fmt.Fprintln(w)
			renderPerClass(w, res.PerClass())

			if pairs := res.MostConfused(confused); confused > 0 && len(pairs) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, "Most confused:")
				for _, pr := range pairs {
					fmt.Fprintf(w, "  %s -> %s: %d\n", pr.True, pr.Predicted, pr.Count)
				}
			}
			if misclassified {
				fmt.Fprintln(w)
				renderMisclassified(w, res.Misclassified())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "labelled corpus (CSV or TSV)")
	cmd.Flags().BoolVar(&misclassified, "misclassified", false, "list misclassified rows")
	cmd.Flags().IntVar(&confused, "confused", 3, "show the N most confused label pairs")
	return cmd
}

func summaryStyle(accuracy float64) color.Style {
	switch {
	case accuracy >= 0.8:
		return color.New(color.FgGreen, color.OpBold)
	case accuracy >= 0.5:
		return color.New(color.FgYellow, color.OpBold)
	}
	return color.New(color.FgRed, color.OpBold)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// renderConfusion prints true labels as rows and predictions as columns.
func renderConfusion(w io.Writer, c *evaluate.Confusion) {
	labels := c.Labels()
	table := newTable(w, append([]string{"true \\ predicted"}, labels...))
	for _, t := range labels {
		row := []string{t}
		for _, p := range labels {
			row = append(row, strconv.Itoa(c.Count(t, p)))
		}
		table.Append(row)
	}
	table.Render()
}

func renderPerClass(w io.Writer, scores []evaluate.ClassScore) {
	table := newTable(w, []string{"label", "rows", "correct", "accuracy"})
	for _, s := range scores {
		table.Append([]string{
			s.Label,
			strconv.Itoa(s.Support),
			strconv.Itoa(s.Correct),
			fmt.Sprintf("%.2f%%", 100*s.Accuracy),
		})
	}
	table.Render()
}

func renderMisclassified(w io.Writer, rows []evaluate.RowResult) {
	table := newTable(w, []string{"document", "segment", "true", "predicted", "probability"})
	for _, r := range rows {
		table.Append([]string{
			r.DocumentID,
			strconv.Itoa(r.SegmentID),
			r.True,
			r.Predicted,
			strconv.FormatFloat(r.Probability, 'f', 3, 64),
		})
	}
	table.Render()
}
