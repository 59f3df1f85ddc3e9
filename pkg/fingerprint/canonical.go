package fingerprint

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNoUsableSignals is returned when a submission contains none of the core
// signal groups and cannot be canonicalized.
var ErrNoUsableSignals = errors.New("fingerprint: no usable signal groups in submission")

// Canonical is the deterministic, volatility-stripped form of a submission.
// Groups appear in fixed order, sub-fields sorted by key. Canonicalization is
// a pure function of the input signals: no timestamps, no randomness.
type Canonical struct {
	groups []canonicalGroup
}

type canonicalGroup struct {
	name   string
	fields []canonicalField
}

type canonicalField struct {
	key   string
	value string
}

// Groups returns the names of the signal groups present, in canonical order.
func (c *Canonical) Groups() []string {
	out := make([]string, len(c.groups))
	for i, g := range c.groups {
		out[i] = g.name
	}
	return out
}

// Has reports whether the named group is present.
func (c *Canonical) Has(group string) bool {
	for _, g := range c.groups {
		if g.name == group {
			return true
		}
	}
	return false
}

// Fields returns the retained sub-fields of a group as key -> value, or nil
// when the group is absent.
func (c *Canonical) Fields(group string) map[string]string {
	for _, g := range c.groups {
		if g.name != group {
			continue
		}
		out := make(map[string]string, len(g.fields))
		for _, f := range g.fields {
			out[f.key] = f.value
		}
		return out
	}
	return nil
}

// Components returns every retained sub-field as group -> key -> value. This
// is the form persisted alongside the hashes so stored fingerprints can be
// re-scored against later submissions.
func (c *Canonical) Components() map[string]map[string]string {
	out := make(map[string]map[string]string, len(c.groups))
	for _, g := range c.groups {
		fields := make(map[string]string, len(g.fields))
		for _, f := range g.fields {
			fields[f.key] = f.value
		}
		out[g.name] = fields
	}
	return out
}

// Canonicalize normalizes raw collector output into a Canonical fingerprint.
// Unknown groups are ignored, volatile sub-fields stripped, and both group and
// sub-field ordering fixed regardless of submission order. Behavioral samples
// are not part of the device fingerprint and are skipped here.
func Canonicalize(signals map[string]map[string]any) (*Canonical, error) {
	c := &Canonical{}
	hasCore := false

	for _, name := range groupOrder {
		raw, ok := signals[name]
		if !ok || len(raw) == 0 {
			continue
		}
		excluded := volatileFields[name]
		g := canonicalGroup{name: name}
		for key, val := range raw {
			if excluded[key] {
				continue
			}
			g.fields = append(g.fields, canonicalField{key: key, value: scalarString(val)})
		}
		if len(g.fields) == 0 {
			continue
		}
		sort.Slice(g.fields, func(i, j int) bool { return g.fields[i].key < g.fields[j].key })
		c.groups = append(c.groups, g)
		if coreGroups[name] {
			hasCore = true
		}
	}

	if !hasCore {
		return nil, ErrNoUsableSignals
	}
	return c, nil
}

// scalarString renders a sub-feature value deterministically. Floats are
// formatted with the shortest round-trip representation so 1.0 submitted as
// int or float64 (a JSON decode artifact) canonicalizes identically.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []string:
		cp := make([]string, len(t))
		copy(cp, t)
		sort.Strings(cp)
		return strings.Join(cp, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = scalarString(e)
		}
		sort.Strings(parts)
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// serialize renders the canonical structure for hashing. The format uses
// field and group separators that cannot collide with canonical content
// boundaries: group\x1ekey\x1fvalue\x1f...\x1e...
func (c *Canonical) serialize(include func(group string) bool) string {
	var b strings.Builder
	for _, g := range c.groups {
		if include != nil && !include(g.name) {
			continue
		}
		b.WriteString(g.name)
		b.WriteByte('\x1e')
		for _, f := range g.fields {
			b.WriteString(f.key)
			b.WriteByte('\x1f')
			b.WriteString(f.value)
			b.WriteByte('\x1f')
		}
		b.WriteByte('\x1e')
	}
	return b.String()
}
