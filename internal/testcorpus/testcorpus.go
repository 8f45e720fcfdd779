// Package testcorpus provides a small labelled corpus shared by tests.
package testcorpus

import (
	"strings"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
)

// Documents returns nine documents over three well-separated labels.
func Documents() []corpus.Document {
	return []corpus.Document{
		{ID: "s1", Label: "sport", Text: "match goal team score match"},
		{ID: "p1", Label: "politics", Text: "vote election minister law"},
		{ID: "t1", Label: "tech", Text: "software code chip cloud"},
		{ID: "s2", Label: "sport", Text: "team goal coach match"},
		{ID: "p2", Label: "politics", Text: "election parliament vote law"},
		{ID: "t2", Label: "tech", Text: "chip cloud code server"},
		{ID: "s3", Label: "sport", Text: "score team goal win"},
		{ID: "p3", Label: "politics", Text: "minister law parliament vote"},
		{ID: "t3", Label: "tech", Text: "code software server cloud"},
	}
}

// Records returns Documents as a whitespace-tokenized stream.
func Records() []corpus.Record {
	return Tokens(Documents())
}

// Tokens splits documents on whitespace, keeping their labels.
func Tokens(docs []corpus.Document) []corpus.Record {
	var out []corpus.Record
	for _, d := range docs {
		for _, t := range strings.Fields(d.Text) {
			out = append(out, corpus.Record{DocumentID: d.ID, Term: t, Label: d.Label})
		}
	}
	return out
}

// Unlabelled strips labels from a stream.
func Unlabelled(records []corpus.Record) []corpus.Record {
	out := make([]corpus.Record, len(records))
	for i, r := range records {
		r.Label = ""
		out[i] = r
	}
	return out
}
