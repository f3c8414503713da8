package rows

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	apperrors "sheets_append/internal/errors"

	"github.com/rs/zerolog/log"
)

// SplitKeys splits the --keys option into trimmed column keys.
func SplitKeys(keys string) ([]string, error) {
	parts := strings.Split(keys, ",")
	out := make([]string, 0, len(parts))
	for i, k := range parts {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, apperrors.Newf(apperrors.MalformedArguments, "key %d in %q is empty", i+1, keys)
		}
		out = append(out, k)
	}
	return out, nil
}

// FileSource reads one row per line. Fields are separated by ',' with no
// quoting, so a value can never contain a comma.
type FileSource struct {
	r      io.Reader
	closer io.Closer
	keys   []string
	used   bool
}

// NewFileSource reads rows from r using the given column keys.
func NewFileSource(r io.Reader, keys []string) *FileSource {
	return &FileSource{r: r, keys: keys}
}

// OpenFile opens path and splits keys. The caller must Close the source.
func OpenFile(path, keys string) (*FileSource, error) {
	ks, err := SplitKeys(keys)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.SourceError, "opening row file", err)
	}
	log.Debug().Str("file", path).Strs("keys", ks).Msg("Opened row file")
	src := NewFileSource(f, ks)
	src.closer = f
	return src, nil
}

func (s *FileSource) Keys() []string { return append([]string(nil), s.keys...) }

func (s *FileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Rows yields one row per non-blank line in file order. A line whose field
// count differs from the number of keys is yielded with a MalformedRow error.
// The sequence can be consumed once.
func (s *FileSource) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if s.used {
			yield(Row{}, apperrors.New(apperrors.SourceError, "row file already consumed"))
			return
		}
		s.used = true

		sc := bufio.NewScanner(s.r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for sc.Scan() {
			line++
			raw := strings.TrimSuffix(sc.Text(), "\r")
			if strings.TrimSpace(raw) == "" {
				log.Debug().Int("line", line).Msg("Skipping blank line")
				continue
			}
			row, err := s.parseLine(line, raw)
			if !yield(row, err) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Row{Line: line + 1}, apperrors.Wrap(apperrors.SourceError, fmt.Sprintf("reading line %d", line+1), err))
		}
	}
}

func (s *FileSource) parseLine(line int, raw string) (Row, error) {
	row := Row{Line: line, Raw: raw}
	fields := strings.Split(raw, ",")
	if len(fields) != len(s.keys) {
		return row, apperrors.Newf(apperrors.MalformedRow,
			"line %d has %d fields, expected %d (%s)", line, len(fields), len(s.keys), strings.Join(s.keys, ","))
	}
	for i, k := range s.keys {
		row.Record.Set(k, fields[i])
	}
	return row, nil
}
