// Package rows produces the records appended to a sheet, either from a single
// inline argument or from a comma separated file.
package rows

import (
	"iter"
	"strconv"
	"strings"
)

// Record is an ordered mapping from column key to cell value. Setting a key
// twice keeps its first position and the last value.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds a record from alternating key, value pairs.
func NewRecord(pairs ...string) Record {
	var r Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r Record) Len() int { return len(r.keys) }

// Keys returns the keys in insertion order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// All iterates key, value pairs in insertion order.
func (r Record) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range r.keys {
			if !yield(k, r.values[k]) {
				return
			}
		}
	}
}

// Map returns a copy of the record as a plain map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.keys))
	for k, v := range r.All() {
		m[k] = v
	}
	return m
}

// String renders the record as "k=v;k=v", the inline syntax.
func (r Record) String() string {
	var sb strings.Builder
	for k, v := range r.All() {
		if sb.Len() > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	return sb.String()
}

// Row is a record together with where it came from.
type Row struct {
	// Line is the 1-based line number in file mode and 0 for inline rows.
	Line   int
	Raw    string
	Record Record
}

// Label names the row in status output.
func (r Row) Label() string {
	if r.Line == 0 {
		return "values"
	}
	return "line " + strconv.Itoa(r.Line)
}

// Source yields rows lazily. A non-nil error paired with a row describes that
// row only, unless it is a source error, which ends the sequence.
type Source interface {
	Rows() iter.Seq2[Row, error]
}
