package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "sheets_append/internal/errors"
	"sheets_append/internal/rows"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes needed to list spreadsheets and append to them.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope}

var _ Service = (*Client)(nil)

const spreadsheetQuery = "mimeType='application/vnd.google-apps.spreadsheet' and trashed=false"

// Client talks to Google Drive (document listing) and Google Sheets (sheet
// listing and appends).
type Client struct {
	sheets *sheets.Service
	drive  *drive.Service

	headers      map[int64]*header
	apiCallCount int64
	apiCallMutex sync.Mutex
}

// NewClient builds both services with the same options, typically
// option.WithTokenSource from an auth.Session.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return NewClientFromServices(sheetsService, driveService), nil
}

// NewClientFromServices wraps already configured services.
func NewClientFromServices(sheetsService *sheets.Service, driveService *drive.Service) *Client {
	return &Client{
		sheets:  sheetsService,
		drive:   driveService,
		headers: make(map[int64]*header),
	}
}

func (c *Client) incrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the number of remote calls made so far.
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// ListDocuments returns every spreadsheet the identity can see, across all
// result pages.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	call := c.drive.Files.List().
		Q(spreadsheetQuery).
		Fields("nextPageToken", "files(id,name)").
		PageSize(1000).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		c.incrementAPICall()
		for _, f := range page.Files {
			docs = append(docs, Document{ID: f.Id, Title: f.Name})
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ServiceError, "failed to list documents", err)
	}

	log.Debug().Int("documents", len(docs)).Msg("Listed documents")
	return docs, nil
}

// ListSheets returns the worksheets of doc in tab order.
func (c *Client) ListSheets(ctx context.Context, doc Document) ([]Sheet, error) {
	c.incrementAPICall()
	resp, err := c.sheets.Spreadsheets.Get(doc.ID).
		Fields("sheets.properties(sheetId,title,index)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ServiceError, fmt.Sprintf("failed to list sheets of %q", doc.Title), err)
	}

	out := make([]Sheet, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		out = append(out, Sheet{ID: s.Properties.SheetId, Title: s.Properties.Title, Index: s.Properties.Index})
	}

	log.Debug().Str("document", doc.Title).Int("sheets", len(out)).Msg("Listed sheets")
	return out, nil
}

// ReadSheet returns the values of a range.
func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	c.incrementAPICall()
	resp, err := c.sheets.Spreadsheets.Values.Get(spreadsheetID, range_).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return resp.Values, nil
}

// AppendRows appends rows after the last row of the table found in range_.
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) (string, error) {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	c.incrementAPICall()
	resp, err := c.sheets.Spreadsheets.Values.Append(spreadsheetID, range_, valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to append rows: %w", err)
	}

	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return "", nil
}

func (c *Client) header(ctx context.Context, doc Document, sheet Sheet) (*header, error) {
	if h, ok := c.headers[sheet.ID]; ok {
		return h, nil
	}
	values, err := c.ReadSheet(ctx, doc.ID, A1(sheet.Title, "1:1"))
	if err != nil {
		return nil, err
	}
	var cells []interface{}
	if len(values) > 0 {
		cells = values[0]
	}
	h := newHeader(cells)
	c.headers[sheet.ID] = h
	log.Debug().Str("sheet", sheet.Title).Strs("columns", h.columns).Msg("Read header row")
	return h, nil
}

// InsertRow appends record as a new row of sheet, placing each value under
// the header column that matches its key.
func (c *Client) InsertRow(ctx context.Context, doc Document, sheet Sheet, record rows.Record) (InsertedRow, error) {
	h, err := c.header(ctx, doc, sheet)
	if err != nil {
		return InsertedRow{}, apperrors.Wrap(apperrors.ServiceError, fmt.Sprintf("failed to read header of %q", sheet.Title), err)
	}
	cells, err := h.layout(record)
	if err != nil {
		return InsertedRow{}, err
	}

	updated, err := c.AppendRows(ctx, doc.ID, A1(sheet.Title, "A1"), [][]interface{}{cells})
	if err != nil {
		return InsertedRow{}, apperrors.Wrap(apperrors.ServiceError, fmt.Sprintf("failed to insert row into %q", sheet.Title), err)
	}

	values := make([]string, 0, record.Len())
	for _, v := range record.All() {
		values = append(values, v)
	}
	return InsertedRow{Range: updated, Values: values}, nil
}

// A1 builds a range reference with the sheet title quoted, e.g. 'My Sheet'!A1.
func A1(sheetTitle, cells string) string {
	return "'" + strings.ReplaceAll(sheetTitle, "'", "''") + "'!" + cells
}
