package patient

import "strings"

// Patch is a partial set of field values, as received in a query string.
type Patch map[string]string

// Merge builds a record keyed by key from the non-empty values in patch,
// falling back to original for every field patch leaves empty. Values for
// numeric fields are coerced; a value that is not a number is rejected.
// primaryKey in patch is ignored, as are unknown fields.
func Merge(patch Patch, key int, original Record) (Record, error) {
	merged := Record{PrimaryKey: key}
	for _, f := range fields {
		v := patch[f.name]
		if f.text != nil {
			*f.text(&merged) = *f.text(&original)
			if v != "" {
				*f.text(&merged) = v
			}
			continue
		}
		*f.number(&merged) = *f.number(&original)
		if strings.TrimSpace(v) == "" {
			continue
		}
		n, err := ParseNumber(v)
		if err != nil {
			return Record{}, &ValidationError{Field: f.name, Message: f.name + " must be numeric."}
		}
		*f.number(&merged) = n
	}
	return merged, nil
}
