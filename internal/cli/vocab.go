package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func (a *app) vocabCommand() *cobra.Command {
	var (
		input string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Show the vocabulary selected from a corpus",
		Long: `Vocab prints the retained terms in column order with their document
counts, after stopword removal, lemmatization, min_doc_count and max_word_set.

Example:
  tidysupervise vocab --input corpus.csv --min-doc-count 5 --max-word-set 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			recs, err := records(p, input)
			if err != nil {
				return err
			}
			recs, err = p.Prepare(recs)
			if err != nil {
				return err
			}
			v, err := p.Vocabulary(recs)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%d terms over %d documents\n", v.Len(), v.NumDocs())
			table := newTable(w, []string{"column", "term", "documents"})
			for j, term := range v.Terms() {
				if limit > 0 && j >= limit {
					break
				}
				table.Append([]string{strconv.Itoa(j), term, strconv.Itoa(v.DocCount(term))})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "corpus (CSV or TSV)")
	cmd.Flags().IntVar(&limit, "limit", 50, "terms shown (0 = all)")
	return cmd
}

func (a *app) featuresCommand() *cobra.Command {
	var input, out string

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Write the tf-idf feature matrix of a corpus as CSV",
		Long: `Features builds the vocabulary and the weighted, row-normalized feature
matrix of a corpus and writes it densely as CSV. With training enabled
(--training or training: true) unlabelled documents are dropped and a label
column is written.

Example:
  tidysupervise features --input corpus.csv --segment-size 100 --out matrix.csv`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
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
			recs, err = p.Prepare(recs)
			if err != nil {
				return err
			}
			training := p.Config().Training
			if training {
				recs = p.Labelled(recs)
			}
			v, err := p.Vocabulary(recs)
			if err != nil {
				return err
			}
			x, err := p.Matrix(ctx, recs, v, training)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, createErr := os.Create(out)
				if createErr != nil {
					return createErr
				}
				defer func() {
					if closeErr := f.Close(); closeErr != nil && err == nil {
						err = fmt.Errorf("close %s: %w", out, closeErr)
					}
				}()
				w = f
			}
			return x.WriteCSV(w)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "corpus (CSV or TSV)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().Bool("training", false, "attach labels and drop unlabelled documents")
	_ = a.v.BindPFlag("training", cmd.Flags().Lookup("training"))
	return cmd
}
