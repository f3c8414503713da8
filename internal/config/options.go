package config

import (
	"flag"
	"fmt"
	"io"
	"strings"

	apperrors "sheets_append/internal/errors"

	"github.com/carlmjohnson/flagext"
	"github.com/rs/zerolog/log"
)

// AppName is used for usage output.
const AppName = "sheets-append"

// EnvPrefix prefixes environment variables that stand in for missing options.
const EnvPrefix = "SHEETS_APPEND"

// Recognized option names.
const (
	ServiceAccountID = "serviceAccountId"
	P12Path          = "p12Path"
	DocumentName     = "documentName"
	SheetName        = "sheetName"
	Values           = "values"
	File             = "file"
	Keys             = "keys"
	StopOnError      = "stopOnError"
)

type option struct {
	name  string
	usage string
}

// Options is the registry of recognized command line options.
type Options struct {
	// EnvPrefix enables environment fallbacks for options missing from the
	// command line, e.g. SHEETS_APPEND_SHEETNAME. Empty disables them.
	EnvPrefix string
	// Output receives usage text. Defaults to io.Discard.
	Output io.Writer

	opts []option
}

// NewOptions returns the registry without environment fallbacks.
func NewOptions() *Options {
	return &Options{
		Output: io.Discard,
		opts: []option{
			{name: ServiceAccountID, usage: "service account `id` (client email)"},
			{name: P12Path, usage: "`path` to the service account private key (.p12 or .json)"},
			{name: DocumentName, usage: "exact `title` of the target spreadsheet"},
			{name: SheetName, usage: "exact `title` of the target worksheet"},
			{name: Values, usage: "inline row, e.g. 'name=Ann;age=31'"},
			{name: File, usage: "`path` to a comma separated file, one row per line"},
			{name: Keys, usage: "comma separated column `keys` for --file"},
			{name: StopOnError, usage: "`true|false`: abort a --file run at the first failed row"},
		},
	}
}

// DefaultOptions returns the registry used by the command, with environment
// fallbacks enabled.
func DefaultOptions(out io.Writer) *Options {
	o := NewOptions()
	o.EnvPrefix = EnvPrefix
	o.Output = out
	return o
}

// Names lists the recognized option names in declaration order.
func (o *Options) Names() []string {
	names := make([]string, 0, len(o.opts))
	for _, opt := range o.opts {
		names = append(names, opt.name)
	}
	return names
}

func (o *Options) flagSet() *flag.FlagSet {
	fl := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fl.SetOutput(o.Output)
	for _, opt := range o.opts {
		fl.String(opt.name, "", opt.usage)
	}
	fl.Usage = func() {
		fmt.Fprintf(fl.Output(), `%s appends rows to a worksheet of a Google Sheets document.

Usage:
  %[1]s --serviceAccountId ID --p12Path KEY --documentName DOC --sheetName SHEET --values 'a=1;b=2'
  %[1]s --serviceAccountId ID --p12Path KEY --documentName DOC --sheetName SHEET --file rows.txt --keys a,b

Options:
`, AppName)
		fl.PrintDefaults()
	}
	return fl
}

// Parse turns a flat list of "--name value" tokens into a validated Config.
// Every name must be recognized and every flag must be followed by a value.
func (o *Options) Parse(args []string) (*Config, error) {
	fl := o.flagSet()

	for i := 0; i < len(args); i++ {
		tok := args[i]
		if tok == "--help" || tok == "-h" {
			fl.Usage()
			return nil, flag.ErrHelp
		}
		name, ok := strings.CutPrefix(tok, "--")
		if !ok || fl.Lookup(name) == nil {
			return nil, malformed(args, "unknown argument %q", tok)
		}
		if i+1 >= len(args) {
			return nil, malformed(args, "missing value for %q", tok)
		}
		i++
		if err := fl.Set(name, args[i]); err != nil {
			return nil, malformed(args, "invalid value %q for %q: %v", args[i], tok, err)
		}
	}

	if o.EnvPrefix != "" {
		if err := flagext.ParseEnv(fl, o.EnvPrefix); err != nil {
			return nil, apperrors.Wrap(apperrors.MalformedArguments, "reading options from environment", err)
		}
	}

	values := make(map[string]string)
	fl.Visit(func(f *flag.Flag) {
		values[f.Name] = f.Value.String()
	})

	log.Debug().Strs("options", sortedKeys(values)).Msg("Parsed command line")

	conf := &Config{values: values}
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("%w (args: %q)", err, args)
	}
	return conf, nil
}

// Parse parses args with NewOptions.
func Parse(args []string) (*Config, error) {
	return NewOptions().Parse(args)
}

func malformed(args []string, format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return apperrors.Newf(apperrors.MalformedArguments, "%s (args: %q)", msg, args)
}
