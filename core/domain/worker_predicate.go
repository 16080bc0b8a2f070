package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Field names a filterable message attribute.
type Field string

const (
	FieldID         Field = "id"
	FieldProvider   Field = "provider"
	FieldSender     Field = "sender"
	FieldRecipients Field = "recipients"
	FieldCreatedAt  Field = "created_at"
)

// IsMultiValued reports whether the attribute holds a list.
// In on a list attribute matches when any element is in the set.
func (f Field) IsMultiValued() bool {
	return f == FieldRecipients
}

// Predicate is a backend-neutral boolean filter over messages.
// The set of implementations is closed: And, Or, Eq, In and Range.
type Predicate interface {
	Matches(m *Message) bool
	String() string
	predicate()
}

// And matches when every child matches.
type And struct{ Children []Predicate }

// Or matches when at least one child matches.
type Or struct{ Children []Predicate }

// Eq matches a single value.
type Eq struct {
	Field Field
	Value string
}

// In matches any of Values.
type In struct {
	Field  Field
	Values []string
}

// Range is an inclusive numeric window. A nil bound is open.
type Range struct {
	Field Field
	Gte   *int64
	Lte   *int64
}

func (And) predicate()   {}
func (Or) predicate()    {}
func (Eq) predicate()    {}
func (In) predicate()    {}
func (Range) predicate() {}

// AllOf folds leaves into one conjunction. Nil leaves are skipped; zero
// leaves yield nil (no predicate) and a single leaf is returned as is.
func AllOf(leaves ...Predicate) Predicate {
	return fold(leaves, func(children []Predicate) Predicate { return And{Children: children} })
}

// AnyOf folds leaves into one disjunction with the same rules as AllOf.
func AnyOf(leaves ...Predicate) Predicate {
	return fold(leaves, func(children []Predicate) Predicate { return Or{Children: children} })
}

func fold(leaves []Predicate, build func([]Predicate) Predicate) Predicate {
	kept := make([]Predicate, 0, len(leaves))
	for _, l := range leaves {
		if l != nil {
			kept = append(kept, l)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return build(kept)
}

// Int64 returns a pointer to v, for Range bounds.
func Int64(v int64) *int64 { return &v }

// Matches evaluates p against m. A nil predicate matches everything.
func Matches(p Predicate, m *Message) bool {
	if p == nil {
		return true
	}
	return p.Matches(m)
}

func (p And) Matches(m *Message) bool {
	for _, c := range p.Children {
		if !c.Matches(m) {
			return false
		}
	}
	return true
}

func (p Or) Matches(m *Message) bool {
	for _, c := range p.Children {
		if c.Matches(m) {
			return true
		}
	}
	return false
}

func (p Eq) Matches(m *Message) bool {
	return slices.Contains(stringValues(m, p.Field), p.Value)
}

func (p In) Matches(m *Message) bool {
	for _, v := range stringValues(m, p.Field) {
		if slices.Contains(p.Values, v) {
			return true
		}
	}
	return false
}

func (p Range) Matches(m *Message) bool {
	v, ok := numericValue(m, p.Field)
	if !ok {
		return false
	}
	if p.Gte != nil && v < *p.Gte {
		return false
	}
	if p.Lte != nil && v > *p.Lte {
		return false
	}
	return true
}

func stringValues(m *Message, f Field) []string {
	switch f {
	case FieldID:
		return []string{m.ID}
	case FieldProvider:
		return []string{string(m.Provider)}
	case FieldSender:
		return []string{m.Sender}
	case FieldRecipients:
		return m.Recipients
	}
	return nil
}

func numericValue(m *Message, f Field) (int64, bool) {
	if f == FieldCreatedAt {
		return m.CreatedAt, true
	}
	return 0, false
}

func (p And) String() string { return joinChildren("AND", p.Children) }
func (p Or) String() string  { return joinChildren("OR", p.Children) }
func (p Eq) String() string  { return fmt.Sprintf("%s = %q", p.Field, p.Value) }
func (p In) String() string  { return fmt.Sprintf("%s IN %q", p.Field, p.Values) }

func (p Range) String() string {
	var parts []string
	if p.Gte != nil {
		parts = append(parts, fmt.Sprintf("%s >= %d", p.Field, *p.Gte))
	}
	if p.Lte != nil {
		parts = append(parts, fmt.Sprintf("%s <= %d", p.Field, *p.Lte))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s ANY", p.Field)
	}
	return strings.Join(parts, " AND ")
}

func joinChildren(op string, children []Predicate) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}
