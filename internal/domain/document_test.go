package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDocument_RoundTripKeepsOrderAndValues(t *testing.T) {
	input := `{"zeta":1.50,"alpha":{"nested":[1,2]},"mid":null,"s":"x"}`

	var doc Document
	if err := json.Unmarshal([]byte(input), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != input {
		t.Errorf("round trip mismatch:\ngot:  %s\nwant: %s", out, input)
	}
}

func TestDocument_RejectsNonObject(t *testing.T) {
	for _, input := range []string{`[1,2]`, `"str"`, `42`, `null`} {
		var doc Document
		err := json.Unmarshal([]byte(input), &doc)
		if err == nil {
			t.Errorf("expected error for %s", input)
			continue
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", input, err)
		}
	}
}

func TestDocument_WithAndWithoutDoNotMutate(t *testing.T) {
	var doc Document
	if err := json.Unmarshal([]byte(`{"a":1,"_vector":[9]}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	with, err := doc.With("b", []float32{0.5})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	without := doc.Without(VectorField)

	if _, ok := doc.Get("b"); ok {
		t.Error("original mutated by With")
	}
	if _, ok := doc.Get(VectorField); !ok {
		t.Error("original mutated by Without")
	}
	if _, ok := without.Get(VectorField); ok {
		t.Error("without: vector field still present")
	}

	out, _ := json.Marshal(with)
	if string(out) != `{"a":1,"_vector":[9],"b":[0.5]}` {
		t.Errorf("unexpected with output: %s", out)
	}
}

func TestDocument_ZeroValue(t *testing.T) {
	var doc Document
	if _, ok := doc.Get("a"); ok {
		t.Error("unexpected field")
	}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{}` {
		t.Errorf("got %s", out)
	}
}

func TestDecodeDocuments(t *testing.T) {
	docs, err := DecodeDocuments(strings.NewReader(`[{"a":1},{"b":"x"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	empty, err := DecodeDocuments(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no documents, got %d", len(empty))
	}
}

func TestDecodeDocuments_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{{`},
		{"object instead of array", `{"a":1}`},
		{"null", `null`},
		{"array of scalars", `[1,2]`},
		{"null element", `[{"a":1},null]`},
		{"trailing data", `[{"a":1}] [{"b":2}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeDocuments(strings.NewReader(tc.input))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
