package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one patient entry in the collection.
type Record struct {
	PrimaryKey    int    `json:"primaryKey"`
	LastName      string `json:"lastName"`
	FirstName     string `json:"firstName"`
	DOB           string `json:"dob"`
	NurseUnit     Number `json:"nurseUnit"`
	Room          Number `json:"room"`
	Bed           Number `json:"bed"`
	RoomExt       Number `json:"roomExt"`
	NurseExt      Number `json:"nurseExt"`
	MRN           Number `json:"mrn"`
	Facility      string `json:"facility"`
	AdmitDate     string `json:"admitDate"`
	DischargeDate string `json:"dischargeDate"`
	Deceased      string `json:"deceased"`
	Privacy       string `json:"privacy"`
	Sex           string `json:"sex"`
}

// Collection is the full ordered set of records persisted as one document.
type Collection []Record

// UnmarshalJSON accepts primaryKey written either as a number or as a
// numeric string; older documents stored the key exactly as it arrived in
// the query string.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		PrimaryKey Number `json:"primaryKey"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.PrimaryKey = 0
	if aux.PrimaryKey.Valid {
		k := aux.PrimaryKey.Value
		if k != math.Trunc(k) {
			return fmt.Errorf("primaryKey %v is not an integer", k)
		}
		r.PrimaryKey = int(k)
	}
	return nil
}

// Number is a numeric record field. The zero value is unset and
// serializes as an empty string.
type Number struct {
	Value float64
	Valid bool
}

// NumberOf returns a set Number holding v.
func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

// ParseNumber coerces s to a Number. Surrounding whitespace is ignored and a
// blank string yields an unset Number. NaN and infinities are rejected.
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}, fmt.Errorf("%q is not a number", s)
	}
	return NumberOf(v), nil
}

func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte(`""`), nil
	}
	return []byte(n.String()), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*n = parsed
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = NumberOf(v)
	return nil
}

// field describes one mergeable, matchable record attribute. Exactly one of
// text and number is set.
type field struct {
	name   string
	text   func(*Record) *string
	number func(*Record) *Number
}

const primaryKeyField = "primaryKey"

// fields lists every record attribute except primaryKey, in document order.
var fields = []field{
	{name: "lastName", text: func(r *Record) *string { return &r.LastName }},
	{name: "firstName", text: func(r *Record) *string { return &r.FirstName }},
	{name: "dob", text: func(r *Record) *string { return &r.DOB }},
	{name: "nurseUnit", number: func(r *Record) *Number { return &r.NurseUnit }},
	{name: "room", number: func(r *Record) *Number { return &r.Room }},
	{name: "bed", number: func(r *Record) *Number { return &r.Bed }},
	{name: "roomExt", number: func(r *Record) *Number { return &r.RoomExt }},
	{name: "nurseExt", number: func(r *Record) *Number { return &r.NurseExt }},
	{name: "mrn", number: func(r *Record) *Number { return &r.MRN }},
	{name: "facility", text: func(r *Record) *string { return &r.Facility }},
	{name: "admitDate", text: func(r *Record) *string { return &r.AdmitDate }},
	{name: "dischargeDate", text: func(r *Record) *string { return &r.DischargeDate }},
	{name: "deceased", text: func(r *Record) *string { return &r.Deceased }},
	{name: "privacy", text: func(r *Record) *string { return &r.Privacy }},
	{name: "sex", text: func(r *Record) *string { return &r.Sex }},
}

var fieldsByName = func() map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[f.name] = f
	}
	return m
}()
