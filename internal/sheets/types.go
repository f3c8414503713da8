package sheets

import (
	"context"

	"sheets_append/internal/rows"
)

// Document is a spreadsheet visible to the authenticated identity.
type Document struct {
	ID    string
	Title string
}

// Sheet is a worksheet inside a Document.
type Sheet struct {
	ID    int64
	Title string
	Index int64
}

// InsertedRow describes a successful append.
type InsertedRow struct {
	// Range is the A1 range the row landed in, e.g. "Sheet1!A7:C7".
	Range  string
	Values []string
}

// Service is the subset of the remote tabular service the pipeline uses.
type Service interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	ListSheets(ctx context.Context, doc Document) ([]Sheet, error)
	InsertRow(ctx context.Context, doc Document, sheet Sheet, record rows.Record) (InsertedRow, error)
}
