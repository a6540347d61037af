// Package redact replaces known secret values in text that is about to be
// shown to an operator.
package redact

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"
	"strings"
)

// LengthMin is the shortest string length that will be considered for
// redaction. Shorter values would match too much unrelated output (a secret
// of "1" would blank every digit), so they are reported back to the caller
// instead.
const LengthMin = 6

// Redacted is the replacement for every redacted value.
const Redacted = "[REDACTED]"

// Needles expands secret values into the strings to search for: the value
// itself, each line of a multi-line value, and the JSON string escaping of
// each of those (without quotes), since values are often echoed inside JSON.
// Values shorter than LengthMin are returned in short.
func Needles(values []string) (needles, short []string) {
	seen := make(map[string]struct{})
	add := func(s string) {
		if len(s) < LengthMin {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		needles = append(needles, s)
	}

	for _, value := range values {
		if value == "" {
			continue
		}
		if len(value) < LengthMin {
			short = append(short, value)
			continue
		}

		candidates := []string{value}
		if strings.Contains(value, "\n") {
			for line := range strings.SplitSeq(value, "\n") {
				candidates = append(candidates, strings.TrimSuffix(line, "\r"))
			}
		}

		for _, c := range candidates {
			add(c)
			add(jsonEscape(c))
		}
	}

	return needles, short
}

// String returns s with every occurrence of every needle replaced by
// Redacted. Where needles overlap at the same position the longest wins.
func String(s string, needles []string) string {
	if len(needles) == 0 {
		return s
	}

	sorted := slices.Clone(needles)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})

	pairs := make([]string, 0, 2*len(sorted))
	for _, n := range sorted {
		if n == "" {
			continue
		}
		pairs = append(pairs, n, Redacted)
	}

	return strings.NewReplacer(pairs...).Replace(s)
}

// jsonEscape matches encoders that have HTML escaping turned off, which is
// how published JSON is written.
func jsonEscape(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	b := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return string(b[1 : len(b)-1])
}
