package cache

import (
	"slices"
	"strconv"
	"strings"
)

const (
	partSep = "-"
	listSep = ","
	absent  = "~"
)

var keyEscaper = strings.NewReplacer(
	"%", "%25",
	partSep, "%2D",
	listSep, "%2C",
	absent, "%7E",
)

// KeyBuilder assembles a cache key from positional parts. Every operation must
// append the same parts in the same order; escaping keeps distinct inputs
// from producing the same key, and sets are sorted so their input order does
// not matter.
type KeyBuilder struct {
	parts []string
}

// Key starts a key for the named operation.
func Key(op string) *KeyBuilder {
	return &KeyBuilder{parts: []string{keyEscaper.Replace(op)}}
}

// Str appends a string part. The empty string is recorded as absent.
func (b *KeyBuilder) Str(v string) *KeyBuilder {
	if v == "" {
		b.parts = append(b.parts, absent)
		return b
	}
	b.parts = append(b.parts, keyEscaper.Replace(v))
	return b
}

// Int appends an integer part.
func (b *KeyBuilder) Int(v int) *KeyBuilder {
	b.parts = append(b.parts, keyEscaper.Replace(strconv.Itoa(v)))
	return b
}

// OptInt appends an integer part, recording zero as absent.
func (b *KeyBuilder) OptInt(v int) *KeyBuilder {
	if v == 0 {
		b.parts = append(b.parts, absent)
		return b
	}
	return b.Int(v)
}

// Strs appends a set of strings. Order and duplicates are ignored; an empty
// set is recorded as absent.
func (b *KeyBuilder) Strs(vs []string) *KeyBuilder {
	set := make([]string, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			set = append(set, keyEscaper.Replace(v))
		}
	}
	return b.set(set)
}

// Ints appends a set of integers with the same normalization as Strs.
func (b *KeyBuilder) Ints(vs []int) *KeyBuilder {
	sorted := slices.Clone(vs)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	set := make([]string, len(sorted))
	for i, v := range sorted {
		set[i] = keyEscaper.Replace(strconv.Itoa(v))
	}
	return b.list(set)
}

func (b *KeyBuilder) set(vs []string) *KeyBuilder {
	slices.Sort(vs)
	return b.list(slices.Compact(vs))
}

func (b *KeyBuilder) list(vs []string) *KeyBuilder {
	if len(vs) == 0 {
		b.parts = append(b.parts, absent)
		return b
	}
	b.parts = append(b.parts, strings.Join(vs, listSep))
	return b
}

func (b *KeyBuilder) String() string {
	return strings.Join(b.parts, partSep)
}
