package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

// FormatVersion is the current artifact format.
const FormatVersion = 1

// Artifact is the self-contained serialized form of a Model: everything
// needed to rebuild the identical feature space and scores in another
// process.
type Artifact struct {
	Format      int         `json:"format" yaml:"format"`
	ID          string      `json:"id" yaml:"id"`
	Strategy    string      `json:"strategy" yaml:"strategy"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
	SegmentSize int         `json:"segment_size" yaml:"segment_size"`
	DropPartial bool        `json:"drop_partial" yaml:"drop_partial"`
	NumDocs     int         `json:"num_docs" yaml:"num_docs"`
	Terms       []string    `json:"terms" yaml:"terms"`
	DocCounts   []int       `json:"doc_counts" yaml:"doc_counts"`
	IDF         []float64   `json:"idf" yaml:"idf"`
	Labels      []string    `json:"labels" yaml:"labels"`
	Weights     [][]float64 `json:"weights" yaml:"weights"`
	Bias        []float64   `json:"bias" yaml:"bias"`

	Preprocessing Preprocessing `json:"preprocessing" yaml:"preprocessing"`
}

// Artifact exports the model.
func (m *Model) Artifact() Artifact {
	weights := make([][]float64, len(m.params.Weights))
	for k := range m.params.Weights {
		weights[k] = m.Weights(k)
	}
	return Artifact{
		Format:      FormatVersion,
		ID:          m.id,
		Strategy:    m.strategy,
		CreatedAt:   m.createdAt,
		SegmentSize: m.segmentSize,
		DropPartial: m.dropPartial,
		NumDocs:     m.vocab.NumDocs(),
		Terms:       m.vocab.Terms(),
		DocCounts:   m.vocab.DocCounts(),
		IDF:         m.IDF(),
		Labels:      m.Labels(),
		Weights:     weights,
		Bias:        append([]float64(nil), m.params.Bias...),

		Preprocessing: m.prep,
	}
}

// FromArtifact imports a model, validating every shape.
func FromArtifact(a Artifact) (*Model, error) {
	if a.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported artifact format %d", internalerr.ErrInvalidInput, a.Format)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: artifact has no id", internalerr.ErrInvalidInput)
	}
	if a.SegmentSize < 0 {
		return nil, fmt.Errorf("%w: negative segment size", internalerr.ErrInvalidInput)
	}
	for _, f := range a.IDF {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite idf", internalerr.ErrInvalidInput)
		}
	}

	v, err := vocab.New(a.Terms, a.DocCounts, a.NumDocs)
	if err != nil {
		return nil, fmt.Errorf("artifact vocabulary: %w", err)
	}

	params := classifier.Params{
		Labels:  append([]string(nil), a.Labels...),
		Weights: make([][]float64, len(a.Weights)),
		Bias:    append([]float64(nil), a.Bias...),
	}
	for k, w := range a.Weights {
		params.Weights[k] = append([]float64(nil), w...)
	}

	m, err := newModel(a.ID, a.Strategy, v, append([]float64(nil), a.IDF...),
		a.SegmentSize, a.DropPartial, params, a.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.prep = a.Preprocessing
	return m, nil
}

// WriteJSON encodes the model artifact as JSON.
func (m *Model) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m.Artifact())
}

// ReadJSON decodes a JSON model artifact.
func ReadJSON(r io.Reader) (*Model, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return FromArtifact(a)
}

// WriteYAML encodes the model artifact as YAML.
func (m *Model) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(m.Artifact()); err != nil {
		return err
	}
	return enc.Close()
}

// ReadYAML decodes a YAML model artifact.
func ReadYAML(r io.Reader) (*Model, error) {
	var a Artifact
	if err := yaml.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return FromArtifact(a)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// SaveFile writes the artifact to path; .yaml/.yml selects YAML, anything
// else JSON.
func (m *Model) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if isYAML(path) {
		return m.WriteYAML(f)
	}
	return m.WriteJSON(f)
}

// LoadFile reads an artifact written by SaveFile.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if isYAML(path) {
		return ReadYAML(f)
	}
	return ReadJSON(f)
}
