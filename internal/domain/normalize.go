package domain

import (
	"strings"
)

// TagNormalizer augments raw tags before they are stored. Implementations must
// be pure and always return a map, possibly the input unchanged.
type TagNormalizer interface {
	Normalize(tags Tags) Tags
}

// NormalizerFunc adapts a function to TagNormalizer.
type NormalizerFunc func(Tags) Tags

func (f NormalizerFunc) Normalize(tags Tags) Tags { return f(tags) }

// NopNormalizer returns tags unchanged.
var NopNormalizer TagNormalizer = NormalizerFunc(func(t Tags) Tags { return t })

// Chain applies normalizers in order.
func Chain(ns ...TagNormalizer) TagNormalizer {
	return NormalizerFunc(func(t Tags) Tags {
		for _, n := range ns {
			t = n.Normalize(t)
		}
		return t
	})
}

// TrimNormalizer trims surrounding whitespace from keys and string values,
// compresses inner runs of spaces in string values and drops tags whose key
// or string value ends up empty.
var TrimNormalizer TagNormalizer = NormalizerFunc(trimTags)

func trimTags(tags Tags) Tags {
	out := make(Tags, len(tags))
	for k, v := range tags {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if s, ok := v.Str(); ok {
			s = NormalizeText(s)
			if s == "" {
				continue
			}
			v = String(s)
		}
		out[k] = v
	}
	return out
}

// NormalizeText trims leading/trailing whitespace and compresses multiple
// spaces into one. Case is preserved.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
