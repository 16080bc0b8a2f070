package domain

import "sort"

// VectorOperator is a comparison understood by the vector index metadata filter.
type VectorOperator string

const (
	VecIn  VectorOperator = "$in"
	VecGte VectorOperator = "$gte"
	VecLte VectorOperator = "$lte"
)

// VectorUserKeyField scopes every vector query to one partition.
const VectorUserKeyField = "user_key"

// VectorPredicate is a metadata filter in the index's native shape:
//
//	{"user_key": {"$in": ["…"]}, "created_at": {"$gte": 1700000000}}
//
// String-valued conditions carry []string, numeric ones int64.
type VectorPredicate map[string]map[VectorOperator]any

// NewVectorPredicate returns a predicate already scoped to userKey.
func NewVectorPredicate(userKey string) VectorPredicate {
	return VectorPredicate{VectorUserKeyField: {VecIn: []string{userKey}}}
}

// In adds a set-membership condition. Empty value lists are ignored.
func (p VectorPredicate) In(field string, values []string) VectorPredicate {
	if len(values) == 0 {
		return p
	}
	p.cond(field)[VecIn] = values
	return p
}

func (p VectorPredicate) Gte(field string, v int64) VectorPredicate {
	p.cond(field)[VecGte] = v
	return p
}

func (p VectorPredicate) Lte(field string, v int64) VectorPredicate {
	p.cond(field)[VecLte] = v
	return p
}

func (p VectorPredicate) cond(field string) map[VectorOperator]any {
	c, ok := p[field]
	if !ok {
		c = make(map[VectorOperator]any, 2)
		p[field] = c
	}
	return c
}

// UserKeys returns the partitions the predicate is scoped to.
func (p VectorPredicate) UserKeys() []string {
	c, ok := p[VectorUserKeyField]
	if !ok {
		return nil
	}
	keys, _ := c[VecIn].([]string)
	return keys
}

// IsScoped reports whether the predicate names at least one user key.
func (p VectorPredicate) IsScoped() bool {
	for _, k := range p.UserKeys() {
		if k != "" {
			return true
		}
	}
	return false
}

// Fields lists the constrained fields in a stable order.
func (p VectorPredicate) Fields() []string {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
