// Package resolution maps human-readable document and sheet titles to the
// handles the remote service works with.
package resolution

import (
	"context"
	"fmt"

	apperrors "sheets_append/internal/errors"
	"sheets_append/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Lister is the read side of sheets.Service.
type Lister interface {
	ListDocuments(ctx context.Context) ([]sheets.Document, error)
	ListSheets(ctx context.Context, doc sheets.Document) ([]sheets.Sheet, error)
}

// Resolver looks titles up with an exact, case-sensitive match.
type Resolver struct {
	lister Lister
}

func NewResolver(l Lister) *Resolver {
	return &Resolver{lister: l}
}

// ResolveDocument returns the single document titled name.
func (r *Resolver) ResolveDocument(ctx context.Context, name string) (sheets.Document, error) {
	log.Debug().Str("document", name).Msg("Resolving document")
	docs, err := r.lister.ListDocuments(ctx)
	if err != nil {
		return sheets.Document{}, fmt.Errorf("failed to resolve document %q: %w", name, err)
	}

	doc, err := matchTitle(docs, func(d sheets.Document) string { return d.Title }, "document", name)
	if err != nil {
		return sheets.Document{}, err
	}
	log.Debug().Str("document", name).Str("id", doc.ID).Msg("Resolved document")
	return doc, nil
}

// ResolveSheet returns the single worksheet of doc titled name.
func (r *Resolver) ResolveSheet(ctx context.Context, doc sheets.Document, name string) (sheets.Sheet, error) {
	log.Debug().Str("document", doc.Title).Str("sheet", name).Msg("Resolving sheet")
	list, err := r.lister.ListSheets(ctx, doc)
	if err != nil {
		return sheets.Sheet{}, fmt.Errorf("failed to resolve sheet %q: %w", name, err)
	}

	sheet, err := matchTitle(list, func(s sheets.Sheet) string { return s.Title }, "sheet", name)
	if err != nil {
		return sheets.Sheet{}, fmt.Errorf("in document %q: %w", doc.Title, err)
	}
	log.Debug().Str("sheet", name).Int64("id", sheet.ID).Msg("Resolved sheet")
	return sheet, nil
}

// matchTitle scans items linearly. No partial or case-insensitive matching.
func matchTitle[T any](items []T, title func(T) string, what, name string) (T, error) {
	var (
		found T
		n     int
	)
	for _, it := range items {
		if title(it) == name {
			if n == 0 {
				found = it
			}
			n++
		}
	}

	var zero T
	switch n {
	case 1:
		return found, nil
	case 0:
		return zero, apperrors.Newf(apperrors.NotFound, "%s %q not found among %d candidates", what, name, len(items))
	default:
		return zero, apperrors.Newf(apperrors.Ambiguous, "%s %q matches %d entries", what, name, n)
	}
}
