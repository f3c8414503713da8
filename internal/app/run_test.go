package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sheets_append/internal/auth"
	"sheets_append/internal/config"
	apperrors "sheets_append/internal/errors"
	"sheets_append/internal/notifications"
	"sheets_append/internal/rows"
	"sheets_append/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	err   error
	calls int
}

func (f *fakeAuth) Authenticate(ctx context.Context, accountID, keyPath string, scopes []string) (*auth.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Session{AccountID: accountID}, nil
}

type fakeService struct {
	docs     []sheets.Document
	sheets   []sheets.Sheet
	rejected map[string]bool
	inserted []string
}

func (f *fakeService) ListDocuments(ctx context.Context) ([]sheets.Document, error) {
	return f.docs, nil
}

func (f *fakeService) ListSheets(ctx context.Context, doc sheets.Document) ([]sheets.Sheet, error) {
	return f.sheets, nil
}

func (f *fakeService) InsertRow(ctx context.Context, doc sheets.Document, sheet sheets.Sheet, record rows.Record) (sheets.InsertedRow, error) {
	if f.rejected[record.String()] {
		return sheets.InsertedRow{}, apperrors.New(apperrors.ServiceError, "rejected")
	}
	f.inserted = append(f.inserted, record.String())
	return sheets.InsertedRow{Range: sheet.Title + "!A2:B2"}, nil
}

type recordingNotifier struct {
	runs []notifications.RunSummary
}

func (n *recordingNotifier) NotifyRun(ctx context.Context, s notifications.RunSummary) error {
	n.runs = append(n.runs, s)
	return nil
}

func newService() *fakeService {
	return &fakeService{
		docs:   []sheets.Document{{ID: "1", Title: "Cabin"}, {ID: "2", Title: "Cabin Log"}},
		sheets: []sheets.Sheet{{ID: 0, Title: "Sheet1"}, {ID: 7, Title: "Temps"}},
	}
}

func newRunner(svc *fakeService, a *fakeAuth, n *recordingNotifier, out *bytes.Buffer) *Runner {
	r := &Runner{
		Auth: a,
		NewService: func(ctx context.Context, session *auth.Session) (sheets.Service, error) {
			return svc, nil
		},
	}
	if n != nil {
		r.Notifier = n
	}
	if out != nil {
		r.Out = out
	}
	return r
}

func parse(t *testing.T, extra ...string) *config.Config {
	t.Helper()
	args := append([]string{
		"--serviceAccountId", "svc@example.iam.gserviceaccount.com",
		"--p12Path", "key.p12",
		"--documentName", "Cabin",
		"--sheetName", "Temps",
	}, extra...)
	conf, err := config.NewOptions().Parse(args)
	require.NoError(t, err)
	return conf
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunInlineSuccess(t *testing.T) {
	svc, n := newService(), &recordingNotifier{}
	var out bytes.Buffer
	r := newRunner(svc, &fakeAuth{}, n, &out)

	summary, err := r.Run(context.Background(), parse(t, "--values", "time=10:00;temp=21.5"))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, []string{"time=10:00;temp=21.5"}, svc.inserted)
	assert.Equal(t, Done, r.State())
	assert.Contains(t, out.String(), "Temps!A2:B2")

	require.Len(t, n.runs, 1)
	assert.Equal(t, "inline", n.runs[0].Mode)
	assert.NoError(t, n.runs[0].Err)
}

func TestRunInlineFailureAborts(t *testing.T) {
	svc := newService()
	svc.rejected = map[string]bool{"a=1": true}
	r := newRunner(svc, &fakeAuth{}, nil, nil)

	_, err := r.Run(context.Background(), parse(t, "--values", "a=1"))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ServiceError))
	assert.Contains(t, err.Error(), `values "a=1"`)
	assert.Equal(t, Aborted, r.State())
}

func TestRunFileModeContinuesPastFailures(t *testing.T) {
	svc, n := newService(), &recordingNotifier{}
	svc.rejected = map[string]bool{"time=b;temp=2": true}
	path := writeFile(t, "a,1\nb,2\nc\nd,4\n")
	var out bytes.Buffer
	r := newRunner(svc, &fakeAuth{}, n, &out)

	summary, err := r.Run(context.Background(), parse(t, "--file", path, "--keys", "time,temp"))

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, []string{"time=a;temp=1", "time=d;temp=4"}, svc.inserted)
	assert.Equal(t, Done, r.State())
	assert.Equal(t, 2, strings.Count(out.String(), "failed  "))

	require.Len(t, n.runs, 1)
	assert.Equal(t, 2, n.runs[0].Failed)
}

func TestRunFileModeStopOnError(t *testing.T) {
	svc := newService()
	path := writeFile(t, "a,1\nb\nc,3\n")
	r := newRunner(svc, &fakeAuth{}, nil, nil)

	summary, err := r.Run(context.Background(), parse(t, "--file", path, "--keys", "time,temp", "--stopOnError", "true"))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.MalformedRow))
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, []string{"time=a;temp=1"}, svc.inserted)
	assert.Equal(t, Aborted, r.State())
}

func TestRunMissingFileIsSourceError(t *testing.T) {
	r := newRunner(newService(), &fakeAuth{}, nil, nil)

	_, err := r.Run(context.Background(), parse(t, "--file", filepath.Join(t.TempDir(), "missing"), "--keys", "a"))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.SourceError))
	assert.Equal(t, Aborted, r.State())
}

func TestRunAbortsBeforeUpload(t *testing.T) {
	tests := []struct {
		name  string
		authn *fakeAuth
		extra []string
		kind  apperrors.Kind
	}{
		{
			name:  "auth failure",
			authn: &fakeAuth{err: apperrors.New(apperrors.AuthError, "bad key")},
			kind:  apperrors.AuthError,
		},
		{
			name:  "unknown document",
			authn: &fakeAuth{},
			extra: []string{"--documentName", "Garage"},
			kind:  apperrors.NotFound,
		},
		{
			name:  "unknown sheet",
			authn: &fakeAuth{},
			extra: []string{"--sheetName", "Sheet2"},
			kind:  apperrors.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, n := newService(), &recordingNotifier{}
			r := newRunner(svc, tt.authn, n, nil)

			_, err := r.Run(context.Background(), parse(t, append(tt.extra, "--values", "a=1")...))

			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, Aborted, r.State())
			assert.Empty(t, svc.inserted)
			require.Len(t, n.runs, 1)
			assert.Error(t, n.runs[0].Err)
		})
	}
}

func TestRunAuthErrorNamesAccountAndKey(t *testing.T) {
	r := newRunner(newService(), &fakeAuth{err: errors.New("boom")}, nil, nil)

	_, err := r.Run(context.Background(), parse(t, "--values", "a=1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc@example.iam.gserviceaccount.com")
	assert.Contains(t, err.Error(), "key.p12")
}

func TestRunCancelledContext(t *testing.T) {
	svc := newService()
	path := writeFile(t, "a,1\n")
	r := newRunner(svc, &fakeAuth{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, parse(t, "--file", path, "--keys", "time,temp"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.inserted)
	assert.Equal(t, Aborted, r.State())
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, Unauthenticated.next(Authenticated))
	assert.True(t, Resolved.next(Uploading))
	assert.True(t, Uploading.next(Done))
	assert.True(t, Authenticated.next(Aborted))
	assert.False(t, Unauthenticated.next(Resolved))
	assert.False(t, Done.next(Aborted))
	assert.False(t, Aborted.next(Done))
	assert.True(t, Done.Terminal())
	assert.Equal(t, "uploading", Uploading.String())
}

func TestCLIHelpIsNotAnError(t *testing.T) {
	assert.NoError(t, CLI(context.Background(), []string{"--help"}))
}

func TestCLIMalformedArguments(t *testing.T) {
	err := CLI(context.Background(), []string{"--documentName"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.MalformedArguments))
}
