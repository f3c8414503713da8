package config

import (
	"sort"
	"strconv"

	apperrors "sheets_append/internal/errors"
	"sheets_append/internal/rows"
)

// Mode selects the row source.
type Mode int

const (
	// InlineMode appends the single row given by --values.
	InlineMode Mode = iota + 1
	// FileMode appends one row per line of --file, keyed by --keys.
	FileMode
)

func (m Mode) String() string {
	switch m {
	case InlineMode:
		return "inline"
	case FileMode:
		return "file"
	default:
		return "unknown"
	}
}

var required = []string{ServiceAccountID, P12Path, DocumentName, SheetName}

// Config is the validated, read-only result of parsing the command line.
type Config struct {
	values map[string]string
}

// Get returns the raw value of an option and whether it was supplied.
func (c *Config) Get(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Values returns a copy of every supplied option.
func (c *Config) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *Config) ServiceAccountID() string { return c.values[ServiceAccountID] }
func (c *Config) P12Path() string          { return c.values[P12Path] }
func (c *Config) DocumentName() string     { return c.values[DocumentName] }
func (c *Config) SheetName() string        { return c.values[SheetName] }
func (c *Config) InlineValues() string     { return c.values[Values] }
func (c *Config) File() string             { return c.values[File] }
func (c *Config) Keys() string             { return c.values[Keys] }

// Mode reports which row source the configuration selects.
func (c *Config) Mode() Mode {
	if _, ok := c.values[Values]; ok {
		return InlineMode
	}
	return FileMode
}

// StopOnError reports whether the upload should abort at the first failed
// row. Inline runs always stop; file runs continue unless --stopOnError
// parses as true. The raw token stays available through Get.
func (c *Config) StopOnError() bool {
	if c.Mode() == InlineMode {
		return true
	}
	v, _ := strconv.ParseBool(c.values[StopOnError])
	return v
}

func (c *Config) validate() error {
	for _, name := range required {
		if c.values[name] == "" {
			return apperrors.Newf(apperrors.MalformedArguments, "missing required option --%s", name)
		}
	}
	if v, ok := c.values[StopOnError]; ok {
		if _, err := strconv.ParseBool(v); err != nil {
			return apperrors.Newf(apperrors.MalformedArguments, "--%s must be true or false, got %q", StopOnError, v)
		}
	}

	_, hasValues := c.values[Values]
	_, hasFile := c.values[File]
	_, hasKeys := c.values[Keys]

	switch {
	case hasValues && (hasFile || hasKeys):
		return apperrors.New(apperrors.MalformedArguments, "--values cannot be combined with --file or --keys")
	case hasValues:
		return nil
	case hasFile && hasKeys:
		_, err := rows.SplitKeys(c.values[Keys])
		return err
	case hasFile:
		return apperrors.New(apperrors.MalformedArguments, "--file requires --keys")
	case hasKeys:
		return apperrors.New(apperrors.MalformedArguments, "--keys requires --file")
	default:
		return apperrors.New(apperrors.MalformedArguments, "one of --values or --file with --keys is required")
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
