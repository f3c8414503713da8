// Package app wires configuration, authentication, resolution and upload
// into one command run.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"sheets_append/internal/auth"
	"sheets_append/internal/config"
	"sheets_append/internal/notifications"
	"sheets_append/internal/processing"
	"sheets_append/internal/resolution"
	"sheets_append/internal/rows"
	"sheets_append/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Authenticator produces a session for a service account.
type Authenticator interface {
	Authenticate(ctx context.Context, accountID, keyPath string, scopes []string) (*auth.Session, error)
}

// ServiceFactory builds the remote service for an authenticated session.
type ServiceFactory func(ctx context.Context, session *auth.Session) (sheets.Service, error)

// Notifier receives the summary of every run.
type Notifier interface {
	NotifyRun(ctx context.Context, s notifications.RunSummary) error
}

type apiCounter interface {
	GetAPICallCount() int64
}

// Runner executes one configured run. Zero fields get defaults.
type Runner struct {
	Auth       Authenticator
	NewService ServiceFactory
	Notifier   Notifier
	Out        io.Writer

	state State
}

func defaultService(ctx context.Context, session *auth.Session) (sheets.Service, error) {
	return sheets.NewClient(ctx, session.ClientOption())
}

// State is the state the runner last reached.
func (r *Runner) State() State { return r.state }

func (r *Runner) transition(to State) {
	if !r.state.next(to) {
		log.Warn().Stringer("from", r.state).Stringer("to", to).Msg("Unexpected state transition")
	}
	log.Debug().Stringer("from", r.state).Stringer("to", to).Msg("State transition")
	r.state = to
}

// Run authenticates, resolves the target sheet and uploads the configured
// rows. The returned error is fatal; per-row failures in file mode are only
// counted in the Summary.
func (r *Runner) Run(ctx context.Context, conf *config.Config) (summary processing.Summary, err error) {
	r.state = Unauthenticated
	if r.Auth == nil {
		r.Auth = auth.Provider{}
	}
	if r.NewService == nil {
		r.NewService = defaultService
	}
	if r.Out == nil {
		r.Out = io.Discard
	}

	report := notifications.RunSummary{
		Document: conf.DocumentName(),
		Sheet:    conf.SheetName(),
		Mode:     conf.Mode().String(),
	}
	defer func() {
		if err != nil {
			r.transition(Aborted)
		}
		if r.Notifier == nil {
			return
		}
		report.Rows, report.Succeeded, report.Failed, report.Err = summary.Rows, summary.Succeeded, summary.Failed, err
		if nerr := r.Notifier.NotifyRun(context.WithoutCancel(ctx), report); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send run notification")
		}
	}()

	session, err := r.Auth.Authenticate(ctx, conf.ServiceAccountID(), conf.P12Path(), sheets.Scopes)
	if err != nil {
		return summary, fmt.Errorf("service account %q with key %q: %w", conf.ServiceAccountID(), conf.P12Path(), err)
	}
	r.transition(Authenticated)

	svc, err := r.NewService(ctx, session)
	if err != nil {
		return summary, fmt.Errorf("failed to create sheets service: %w", err)
	}
	defer logAPICalls(svc)

	resolver := resolution.NewResolver(svc)
	doc, err := resolver.ResolveDocument(ctx, conf.DocumentName())
	if err != nil {
		return summary, err
	}
	sheet, err := resolver.ResolveSheet(ctx, doc, conf.SheetName())
	if err != nil {
		return summary, err
	}
	r.transition(Resolved)
	logAPICalls(svc)

	src, closeSrc, err := openSource(conf)
	if err != nil {
		return summary, err
	}
	defer closeSrc()

	r.transition(Uploading)
	policy := processing.Policy{StopOnError: conf.StopOnError()}
	summary, err = processing.NewUploader(svc, doc, sheet, policy, r.Out).Upload(ctx, src)
	if err != nil {
		return summary, fmt.Errorf("upload to %q / %q: %w", doc.Title, sheet.Title, err)
	}
	r.transition(Done)
	return summary, nil
}

func openSource(conf *config.Config) (rows.Source, func(), error) {
	if conf.Mode() == config.InlineMode {
		return rows.NewInlineSource(conf.InlineValues()), func() {}, nil
	}
	src, err := rows.OpenFile(conf.File(), conf.Keys())
	if err != nil {
		return nil, nil, fmt.Errorf("file %q with keys %q: %w", conf.File(), conf.Keys(), err)
	}
	return src, func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Str("file", conf.File()).Msg("Failed to close row file")
		}
	}, nil
}

func logAPICalls(svc sheets.Service) {
	if c, ok := svc.(apiCounter); ok {
		log.Debug().Int64("api_calls", c.GetAPICallCount()).Msg("Remote API calls so far")
	}
}

// CLI parses args, runs once and prints any fatal error to stderr. A help
// request is not an error.
func CLI(ctx context.Context, args []string) error {
	conf, err := config.DefaultOptions(os.Stderr).Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	runner := &Runner{
		Notifier: InitializeNotificationClient(),
		Out:      os.Stdout,
	}
	summary, err := runner.Run(ctx, conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	if summary.Failed > 0 {
		log.Warn().
			Int("failed", summary.Failed).
			Int("succeeded", summary.Succeeded).
			Msg("Some rows were not uploaded")
	}
	return nil
}
