package querycache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anand-gl/jsoncanonicalizer"
)

// Key identifies a cached read. Keys are compared segment by segment on the
// canonical JSON form of each segment, so filter maps and structs with the same
// content are equal regardless of field order.
type Key struct {
	segs []any
	enc  []string
}

// NewKey builds a key from segments. The segments are copied.
func NewKey(segs ...any) Key {
	k := Key{
		segs: make([]any, len(segs)),
		enc:  make([]string, len(segs)),
	}
	copy(k.segs, segs)
	for i, s := range segs {
		k.enc[i] = canonical(s)
	}
	return k
}

// canonical returns the canonical JSON form of v: object members sorted by
// name and numbers in their shortest form. Integer literals are kept exactly
// so ids beyond the float64 range stay distinct. Values that cannot be
// marshalled fall back to their Go syntax representation.
func canonical(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(normalizeNumbers(tree))
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
	case json.Number:
		return json.RawMessage(numberText(t))
	}
	return v
}

// numberText renders non-integer numbers in RFC 8785 form. The canonicalizer
// only accepts objects and arrays at the top level, so n is wrapped in a
// one-element array.
func numberText(n json.Number) string {
	s := n.String()
	if isIntegerLiteral(s) {
		return s
	}
	out, err := jsoncanonicalizer.Transform([]byte("[" + s + "]"))
	if err != nil {
		return s
	}
	return string(out[1 : len(out)-1])
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Append returns a new key with seg added at the end.
func (k Key) Append(seg any) Key {
	segs := make([]any, 0, len(k.segs)+1)
	segs = append(segs, k.segs...)
	enc := make([]string, 0, len(k.enc)+1)
	enc = append(enc, k.enc...)
	return Key{segs: append(segs, seg), enc: append(enc, canonical(seg))}
}

// Segments returns a copy of the key's segments.
func (k Key) Segments() []any {
	out := make([]any, len(k.segs))
	copy(out, k.segs)
	return out
}

func (k Key) Len() int {
	return len(k.segs)
}

// IsZero reports whether the key has no segments.
func (k Key) IsZero() bool {
	return len(k.segs) == 0
}

// HasPrefix reports whether prefix matches the leading segments of k. Every
// key has itself as a prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.enc) > len(k.enc) {
		return false
	}
	for i, e := range prefix.enc {
		if k.enc[i] != e {
			return false
		}
	}
	return true
}

func (k Key) Equal(other Key) bool {
	return len(k.enc) == len(other.enc) && k.HasPrefix(other)
}

// Hash is the canonical JSON array of the segments. Equal keys have equal
// hashes.
func (k Key) Hash() string {
	return "[" + strings.Join(k.enc, ",") + "]"
}

func (k Key) String() string {
	return k.Hash()
}

// Domain builds the standard key tree for one resource:
//
//	all      [name]
//	lists    [name, "list"]
//	list     [name, "list", filter]
//	details  [name, "detail"]
//	detail   [name, "detail", id]
type Domain struct {
	name string
}

func NewDomain(name string) Domain {
	return Domain{name: name}
}

func (d Domain) Name() string {
	return d.name
}

func (d Domain) All() Key {
	return NewKey(d.name)
}

func (d Domain) Lists() Key {
	return d.All().Append("list")
}

func (d Domain) List(filter any) Key {
	return d.Lists().Append(filter)
}

func (d Domain) Details() Key {
	return d.All().Append("detail")
}

func (d Domain) Detail(id any) Key {
	return d.Details().Append(id)
}
