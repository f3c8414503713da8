package rows

import (
	"iter"
	"strings"

	apperrors "sheets_append/internal/errors"
)

// ParseInline parses "k1=v1;k2=v2" into a record. Each entry is split on its
// first '='; an entry without '=' or with an empty key is a MalformedRow.
func ParseInline(values string) (Record, error) {
	var r Record
	for _, entry := range strings.Split(values, ";") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return Record{}, apperrors.Newf(apperrors.MalformedRow, "entry %q has no '='", entry)
		}
		if key == "" {
			return Record{}, apperrors.Newf(apperrors.MalformedRow, "entry %q has an empty key", entry)
		}
		r.Set(key, value)
	}
	return r, nil
}

// InlineSource yields the single row given on the command line.
type InlineSource struct {
	values string
}

func NewInlineSource(values string) *InlineSource {
	return &InlineSource{values: values}
}

func (s *InlineSource) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		rec, err := ParseInline(s.values)
		yield(Row{Raw: s.values, Record: rec}, err)
	}
}
