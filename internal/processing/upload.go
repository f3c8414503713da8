// Package processing drives rows from a source into a sheet, one remote
// insert per row.
package processing

import (
	"context"
	"fmt"
	"io"

	apperrors "sheets_append/internal/errors"
	"sheets_append/internal/rows"
	"sheets_append/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Inserter is the write side of sheets.Service.
type Inserter interface {
	InsertRow(ctx context.Context, doc sheets.Document, sheet sheets.Sheet, record rows.Record) (sheets.InsertedRow, error)
}

// Policy decides what happens after a row fails.
type Policy struct {
	// StopOnError aborts the upload at the first failed row. Otherwise the
	// failure is reported and the next row is attempted.
	StopOnError bool
}

// Result is the outcome of one row.
type Result struct {
	Row      rows.Row
	Inserted sheets.InsertedRow
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

// Summary tallies a finished (or aborted) upload.
type Summary struct {
	Rows      int
	Succeeded int
	Failed    int
}

func (s *Summary) add(r Result) {
	s.Rows++
	if r.OK() {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// Uploader inserts rows into a resolved sheet.
type Uploader struct {
	inserter Inserter
	doc      sheets.Document
	sheet    sheets.Sheet
	policy   Policy
	out      io.Writer
}

// NewUploader reports one status line per row to out.
func NewUploader(inserter Inserter, doc sheets.Document, sheet sheets.Sheet, policy Policy, out io.Writer) *Uploader {
	if out == nil {
		out = io.Discard
	}
	return &Uploader{inserter: inserter, doc: doc, sheet: sheet, policy: policy, out: out}
}

// Upload consumes src in order. Rows are inserted strictly one after another.
// Source errors and cancellation always abort; row failures abort only under
// Policy.StopOnError.
func (u *Uploader) Upload(ctx context.Context, src rows.Source) (Summary, error) {
	var summary Summary

	log.Debug().
		Str("document", u.doc.Title).
		Str("sheet", u.sheet.Title).
		Bool("stop_on_error", u.policy.StopOnError).
		Msg("Starting upload")

	for row, err := range src.Rows() {
		if err != nil && !apperrors.Is(err, apperrors.MalformedRow) {
			return summary, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, fmt.Errorf("upload interrupted before %s: %w", row.Label(), ctxErr)
		}

		res := Result{Row: row, Err: err}
		if err == nil {
			res.Inserted, res.Err = u.inserter.InsertRow(ctx, u.doc, u.sheet, row.Record)
		}
		summary.add(res)
		u.report(res)

		if !res.OK() && u.policy.StopOnError {
			return summary, fmt.Errorf("failed to upload %s %q: %w", row.Label(), row.Raw, res.Err)
		}
	}

	log.Info().
		Int("rows", summary.Rows).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Upload complete")
	return summary, nil
}

func (u *Uploader) report(r Result) {
	if r.OK() {
		fmt.Fprintf(u.out, "ok      %s: %s -> %s\n", r.Row.Label(), r.Row.Record, r.Inserted.Range)
		log.Debug().Int("line", r.Row.Line).Str("range", r.Inserted.Range).Msg("Row inserted")
		return
	}
	fmt.Fprintf(u.out, "failed  %s: %s: %v\n", r.Row.Label(), r.Row.Raw, r.Err)
	log.Warn().Err(r.Err).Int("line", r.Row.Line).Str("raw", r.Row.Raw).Msg("Row failed")
}
