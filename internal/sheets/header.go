package sheets

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "sheets_append/internal/errors"
	"sheets_append/internal/rows"
)

// header maps record keys to column positions of a sheet's first row.
type header struct {
	columns    []string
	exact      map[string]int
	normalized map[string]int
}

func newHeader(cells []interface{}) *header {
	h := &header{
		exact:      make(map[string]int),
		normalized: make(map[string]int),
	}
	for i, cell := range cells {
		name := strings.TrimSpace(fmt.Sprintf("%v", cell))
		h.columns = append(h.columns, name)
		if name == "" {
			continue
		}
		if _, dup := h.exact[name]; !dup {
			h.exact[name] = i
		}
		key := NormalizeKey(name)
		if _, dup := h.normalized[key]; !dup && key != "" {
			h.normalized[key] = i
		}
	}
	return h
}

// NormalizeKey lowercases name and drops everything except letters, digits,
// '-' and '.', which is how list-style row APIs address header columns
// ("First Name" becomes "firstname").
func NormalizeKey(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (h *header) column(key string) (int, bool) {
	if i, ok := h.exact[key]; ok {
		return i, true
	}
	i, ok := h.normalized[NormalizeKey(key)]
	return i, ok
}

// layout places the record's values under their header columns. Columns
// without a value are left empty; trailing empty cells are trimmed. Two keys
// landing in the same column are a MalformedRow.
func (h *header) layout(record rows.Record) ([]interface{}, error) {
	if len(h.exact) == 0 {
		return nil, apperrors.New(apperrors.ServiceError, "sheet has no header row")
	}

	cells := make([]interface{}, len(h.columns))
	for i := range cells {
		cells[i] = ""
	}

	var unknown []string
	owner := make(map[int]string)
	last := -1
	for k, v := range record.All() {
		i, ok := h.column(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if prev, taken := owner[i]; taken {
			return nil, apperrors.Newf(apperrors.MalformedRow,
				"keys %q and %q both map to column %q", prev, k, h.columns[i])
		}
		owner[i] = k
		cells[i] = v
		last = max(last, i)
	}
	if len(unknown) > 0 {
		return nil, apperrors.Newf(apperrors.ServiceError,
			"no header column for key(s) %s (header: %s)", strings.Join(unknown, ", "), strings.Join(h.columns, ", "))
	}
	return cells[:last+1], nil
}
