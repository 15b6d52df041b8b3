// Package text projects JSON documents onto the single string that gets embedded.
package text

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecembed/internal/domain"
)

// Extract concatenates the stringified values of fields, in the given order,
// each followed by one space. Absent, null and object fields contribute
// nothing. The result is passed to the embedding backend as-is.
func Extract(doc domain.Document, fields []string) string {
	var b strings.Builder
	for _, name := range fields {
		raw, ok := doc.Get(name)
		if !ok {
			continue
		}
		value, err := decode(raw)
		if err != nil {
			continue
		}
		if fragment, ok := Stringify(value); ok {
			b.WriteString(fragment)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Stringify renders a decoded JSON value as indexable text.
// Arrays are flattened recursively and joined by single spaces; an array
// with no renderable element, null and objects report false.
func Stringify(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return formatNumber(v), true
	case float64:
		return formatFloat(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := Stringify(elem); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, " "), true
	default:
		// null and nested objects are not flattened into free text
		return "", false
	}
}

func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err //nolint:wrapcheck // caller skips undecodable fields
	}
	return v, nil
}

// formatNumber keeps integer literals in integer form. Any other number,
// including integers beyond 64 bits, is printed by formatFloat.
func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return strconv.FormatUint(u, 10)
	}
	if f, err := n.Float64(); err == nil {
		return formatFloat(f)
	}
	return n.String()
}

// formatFloat prints the shortest round-trip digits of f and always marks it
// as a float: 1.0, 0.001, 1e-7, 1.5e300. Plain notation is used for decimal
// exponents in (-6, 21], scientific notation outside.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64) // [-]d.ddde±xx
	var b strings.Builder
	if s[0] == '-' {
		b.WriteByte('-')
		s = s[1:]
	}
	mantissa, expPart, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mantissa, ".", "", 1)
	n := len(digits)
	point := exp + 1 // position of the decimal point within digits

	switch {
	case point >= n && point <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", point-n))
		b.WriteString(".0")
	case point > 0 && point <= 21:
		b.WriteString(digits[:point])
		b.WriteByte('.')
		b.WriteString(digits[point:])
	case point > -6 && point <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -point))
		b.WriteString(digits)
	default:
		b.WriteString(digits[:1])
		if n > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		b.WriteString(strconv.Itoa(point - 1))
	}
	return b.String()
}
