// Package batch partitions indexed documents into fixed-size, order-preserving groups.
package batch

import (
	"iter"

	"github.com/kailas-cloud/vecembed/internal/domain"
)

// DefaultSize is the number of documents sent to the backend in one call.
const DefaultSize = 4

// Entry is a document tagged with its zero-based input position and its extracted text.
type Entry struct {
	Index    int
	Document domain.Document
	Text     string
}

// Enumerate yields every document with its input position and extracted text.
// Extraction runs lazily, one document at a time.
func Enumerate(docs []domain.Document, extract func(domain.Document) string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i, doc := range docs {
			if !yield(Entry{Index: i, Document: doc, Text: extract(doc)}) {
				return
			}
		}
	}
}

// Schedule groups items into consecutive batches of size elements; the last
// batch may be smaller. Concatenating the batches reproduces items exactly.
// Every yielded slice is freshly allocated, so callers may keep it.
// A size below 1 is treated as 1.
func Schedule[T any](items iter.Seq[T], size int) iter.Seq[[]T] {
	if size < 1 {
		size = 1
	}
	return func(yield func([]T) bool) {
		group := make([]T, 0, size)
		for item := range items {
			group = append(group, item)
			if len(group) == size {
				if !yield(group) {
					return
				}
				group = make([]T, 0, size)
			}
		}
		if len(group) > 0 {
			yield(group)
		}
	}
}

// Count returns the number of batches Schedule yields for n items.
func Count(n, size int) int {
	if size < 1 {
		size = 1
	}
	return (n + size - 1) / size
}

// Texts returns the extracted texts of a batch in order.
func Texts(entries []Entry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return texts
}
