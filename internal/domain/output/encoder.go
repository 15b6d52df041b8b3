// Package output renders embedded documents into the ingestion formats of vector indexes.
package output

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kailas-cloud/vecembed/internal/domain"
)

// Style selects the output document shape.
type Style string

// Supported output styles.
const (
	// StyleAugmentedDocument emits the input documents with an added _vector field (Meilisearch).
	StyleAugmentedDocument Style = "augmented-document"
	// StylePointList emits {"points": [{id, vector, payload}]} (Qdrant).
	StylePointList Style = "point-list"
)

// ParseStyle validates a style selector. Index names are accepted as aliases.
func ParseStyle(s string) (Style, error) {
	switch s {
	case string(StyleAugmentedDocument), "meilisearch":
		return StyleAugmentedDocument, nil
	case string(StylePointList), "qdrant":
		return StylePointList, nil
	default:
		return "", fmt.Errorf("%w %q (want augmented-document or point-list)", domain.ErrUnknownStyle, s)
	}
}

// Embedded is a document paired with its vector and original input position.
type Embedded struct {
	Index    int
	Document domain.Document
	Vector   []float32
}

// Encoder renders the final output value. Implementations never mutate their input.
type Encoder interface {
	Render(items []Embedded) (any, error)
}

// NewEncoder returns the encoder for a style.
func NewEncoder(style Style) (Encoder, error) {
	switch style {
	case StyleAugmentedDocument:
		return AugmentedDocument{}, nil
	case StylePointList:
		return PointList{}, nil
	default:
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownStyle, style)
	}
}

// AugmentedDocument attaches each vector to its document under domain.VectorField.
type AugmentedDocument struct{}

// Render returns a []domain.Document ordered by input position.
func (AugmentedDocument) Render(items []Embedded) (any, error) {
	docs := make([]domain.Document, 0, len(items))
	for _, item := range byIndex(items) {
		doc, err := item.Document.With(domain.VectorField, vectorValue(item.Vector))
		if err != nil {
			return nil, fmt.Errorf("augment document %d: %w", item.Index, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Point is a vector record in the Qdrant batch upload format.
type Point struct {
	ID      int             `json:"id"`
	Vector  []float32       `json:"vector"`
	Payload domain.Document `json:"payload"`
}

// Points is the top-level PointList output.
type Points struct {
	Points []Point `json:"points"`
}

// PointList builds one Point per document; the id is the input position.
type PointList struct{}

// Render returns a Points value ordered by input position.
func (PointList) Render(items []Embedded) (any, error) {
	points := make([]Point, 0, len(items))
	for _, item := range byIndex(items) {
		points = append(points, Point{
			ID:      item.Index,
			Vector:  vectorValue(item.Vector),
			Payload: item.Document.Without(domain.VectorField),
		})
	}
	return Points{Points: points}, nil
}

// byIndex returns a copy of items sorted by input position.
func byIndex(items []Embedded) []Embedded {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Embedded) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return sorted
}

// vectorValue keeps an empty vector serialized as [] instead of null.
func vectorValue(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}
