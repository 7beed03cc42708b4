package patient

import (
	"net/url"
	"sort"
)

// Predicates maps a field name to the value it must equal.
type Predicates map[string]string

// PredicatesFromQuery takes the first value of each query parameter.
func PredicatesFromQuery(q url.Values) Predicates {
	p := make(Predicates, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p
}

// MatchResult holds the records that satisfied every predicate together with
// their positions in the searched collection.
type MatchResult struct {
	Indices []int
	Records []Record
}

// Len returns the number of matching records.
func (m MatchResult) Len() int { return len(m.Records) }

// NotFound reports whether nothing matched.
func (m MatchResult) NotFound() bool { return len(m.Records) == 0 }

// Ambiguous reports whether more than one record matched.
func (m MatchResult) Ambiguous() bool { return len(m.Records) > 1 }

// First returns the first positional match and its index.
func (m MatchResult) First() (Record, int, bool) {
	if len(m.Records) == 0 {
		return Record{}, -1, false
	}
	return m.Records[0], m.Indices[0], true
}

// Body is the response payload: the record itself for a single match, the
// list for several, nil for none.
func (m MatchResult) Body() any {
	switch len(m.Records) {
	case 0:
		return nil
	case 1:
		return m.Records[0]
	default:
		return m.Records
	}
}

// Match filters c down to the records whose fields loosely equal every
// non-empty predicate. Empty predicate values are ignored, so an empty
// predicate set matches the whole collection. A predicate on an unknown
// field matches nothing.
func Match(p Predicates, c Collection) MatchResult {
	idx := make([]int, len(c))
	for i := range c {
		idx[i] = i
	}

	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		kept := idx[:0]
		for _, i := range idx {
			if fieldEquals(&c[i], k, p[k]) {
				kept = append(kept, i)
			}
		}
		idx = kept
	}

	res := MatchResult{Indices: idx, Records: make([]Record, len(idx))}
	for n, i := range idx {
		res.Records[n] = c[i]
	}
	return res
}

// fieldEquals compares the named field of r with a raw query value. Numeric
// fields compare by value, so "5", "5.0" and " 5 " all equal 5.
func fieldEquals(r *Record, name, value string) bool {
	if name == primaryKeyField {
		n, err := ParseNumber(value)
		return err == nil && n.Valid && n.Value == float64(r.PrimaryKey)
	}
	f, ok := fieldsByName[name]
	if !ok {
		return false
	}
	if f.text != nil {
		return *f.text(r) == value
	}
	have := *f.number(r)
	if !have.Valid {
		return false
	}
	n, err := ParseNumber(value)
	return err == nil && n.Valid && n.Value == have.Value
}
