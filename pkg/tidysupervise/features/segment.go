package features

import "github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"

// Segment is a contiguous slice of a document's token stream.
type Segment struct {
	DocumentID string
	SegmentID  int // 1-based within the document
	Label      string
	Terms      []string
}

// SegmentDocuments splits each document into consecutive chunks of size
// tokens. A size of 0 keeps every document whole. Documents no longer than
// size form a single segment; the trailing partial chunk of a longer document
// is kept unless dropPartial is set.
func SegmentDocuments(docs []corpus.DocTokens, size int, dropPartial bool) []Segment {
	var out []Segment
	for _, d := range docs {
		if size <= 0 || len(d.Terms) <= size {
			out = append(out, Segment{DocumentID: d.ID, SegmentID: 1, Label: d.Label, Terms: d.Terms})
			continue
		}

		id := 1
		for start := 0; start < len(d.Terms); start += size {
			end := start + size
			if end > len(d.Terms) {
				if dropPartial {
					break
				}
				end = len(d.Terms)
			}
			out = append(out, Segment{
				DocumentID: d.ID,
				SegmentID:  id,
				Label:      d.Label,
				Terms:      d.Terms[start:end],
			})
			id++
		}
	}
	return out
}

// presegmented groups records by the segment ids they carry, in first-seen
// (document, segment) order. Labels come from the grouped documents.
func presegmented(records []corpus.Record, docs []corpus.DocTokens) []Segment {
	labels := make(map[string]string, len(docs))
	for _, d := range docs {
		labels[d.ID] = d.Label
	}

	type key struct {
		doc string
		seg int
	}
	index := make(map[key]int)
	var out []Segment
	for _, r := range records {
		k := key{r.DocumentID, max(r.SegmentID, 1)}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Segment{DocumentID: k.doc, SegmentID: k.seg, Label: labels[k.doc]})
		}
		out[i].Terms = append(out[i].Terms, r.Term)
	}
	return out
}
