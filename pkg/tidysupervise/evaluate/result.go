package evaluate

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

// RowResult compares the predicted and true label of one held-out row.
type RowResult struct {
	DocumentID  string  `json:"document"`
	SegmentID   int     `json:"segment"`
	True        string  `json:"true"`
	Predicted   string  `json:"predicted"`
	Probability float64 `json:"probability"`
	Correct     bool    `json:"correct"`
}

// Result is the outcome of one evaluation run.
type Result struct {
	RunID     string
	Model     *model.Model // trained on the train share only
	Rows      []RowResult
	Accuracy  float64
	Confusion *Confusion
}

// Pair is an off-diagonal confusion cell.
type Pair struct {
	True      string
	Predicted string
	Count     int
}

// ClassScore is the accuracy restricted to rows of one true label.
type ClassScore struct {
	Label    string
	Support  int
	Correct  int
	Accuracy float64
}

// Confusion counts rows per (true, predicted) label pair.
type Confusion struct {
	labels []string
	counts map[string]map[string]int
}

// NewConfusion tallies row results.
func NewConfusion(rows []RowResult) *Confusion {
	c := &Confusion{counts: make(map[string]map[string]int)}
	for _, r := range rows {
		byPred, ok := c.counts[r.True]
		if !ok {
			byPred = make(map[string]int)
			c.counts[r.True] = byPred
		}
		byPred[r.Predicted]++
	}
	c.labels = lo.Uniq(lo.FlatMap(rows, func(r RowResult, _ int) []string {
		return []string{r.True, r.Predicted}
	}))
	sort.Strings(c.labels)
	return c
}

// Labels returns every label seen as truth or prediction, sorted.
func (c *Confusion) Labels() []string { return append([]string(nil), c.labels...) }

// Count returns the number of rows with the given true and predicted label.
func (c *Confusion) Count(trueLabel, predicted string) int {
	return c.counts[trueLabel][predicted]
}

// Total returns the number of tallied rows.
func (c *Confusion) Total() int {
	n := 0
	for _, byPred := range c.counts {
		for _, k := range byPred {
			n += k
		}
	}
	return n
}

func newResult(runID string, m *model.Model, rows []RowResult) *Result {
	correct := lo.CountBy(rows, func(r RowResult) bool { return r.Correct })
	acc := 0.0
	if len(rows) > 0 {
		acc = float64(correct) / float64(len(rows))
	}
	return &Result{
		RunID:     runID,
		Model:     m,
		Rows:      rows,
		Accuracy:  acc,
		Confusion: NewConfusion(rows),
	}
}

// Misclassified returns the rows whose top prediction is wrong.
func (r *Result) Misclassified() []RowResult {
	return lo.Filter(r.Rows, func(row RowResult, _ int) bool { return !row.Correct })
}

// MostConfused returns up to k off-diagonal pairs, most frequent first, ties
// by true then predicted label. k <= 0 returns all of them.
func (r *Result) MostConfused(k int) []Pair {
	var pairs []Pair
	for _, t := range r.Confusion.labels {
		for _, p := range r.Confusion.labels {
			if t == p {
				continue
			}
			if n := r.Confusion.Count(t, p); n > 0 {
				pairs = append(pairs, Pair{True: t, Predicted: p, Count: n})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Count > pairs[j].Count
	})
	if k > 0 && len(pairs) > k {
		pairs = pairs[:k]
	}
	return pairs
}

// PerClass returns the accuracy for each true label, sorted by label.
func (r *Result) PerClass() []ClassScore {
	grouped := lo.GroupBy(r.Rows, func(row RowResult) string { return row.True })
	labels := lo.Keys(grouped)
	sort.Strings(labels)

	out := make([]ClassScore, 0, len(labels))
	for _, l := range labels {
		rows := grouped[l]
		ok := lo.CountBy(rows, func(row RowResult) bool { return row.Correct })
		out = append(out, ClassScore{
			Label:    l,
			Support:  len(rows),
			Correct:  ok,
			Accuracy: float64(ok) / float64(len(rows)),
		})
	}
	return out
}

// Summary is the one-line accuracy report.
func (r *Result) Summary() string {
	correct := len(r.Rows) - len(r.Misclassified())
	return fmt.Sprintf("Accuracy %.2f%% (%d/%d held-out rows, %d labels)",
		100*r.Accuracy, correct, len(r.Rows), len(r.Confusion.labels))
}
