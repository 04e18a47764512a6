package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the spreadsheet looked up by name when no ID is configured.
const DefaultSheetName = "HealthDB"

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// ErrSheetNotFound is returned when no spreadsheet with the configured name is visible
// to the service account.
var ErrSheetNotFound = errors.New("knowledge sheet not found")

// SheetsOpts holds configuration for SheetsLoader.
type SheetsOpts struct {
	CredentialsJSON string // service-account key file contents
	SpreadsheetID   string // takes precedence over SheetName
	SheetName       string // resolved through Drive when SpreadsheetID is empty
}

// SheetsOption defines a configuration option for SheetsLoader.
type SheetsOption func(*SheetsOpts)

// WithCredentialsJSON sets the service-account credentials.
func WithCredentialsJSON(js string) SheetsOption {
	return func(o *SheetsOpts) {
		o.CredentialsJSON = js
	}
}

// WithSpreadsheetID addresses the spreadsheet directly by ID.
func WithSpreadsheetID(id string) SheetsOption {
	return func(o *SheetsOpts) {
		o.SpreadsheetID = id
	}
}

// WithSheetName addresses the spreadsheet by its Drive file name.
func WithSheetName(name string) SheetsOption {
	return func(o *SheetsOpts) {
		o.SheetName = name
	}
}

// SheetsLoader reads the first worksheet of a Google spreadsheet.
type SheetsLoader struct {
	opts SheetsOpts
}

// NewSheetsLoader validates the options and returns a loader. No network calls are made here.
func NewSheetsLoader(opts ...SheetsOption) (*SheetsLoader, error) {
	cfg := SheetsOpts{SheetName: DefaultSheetName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("google service account credentials not set")
	}
	if cfg.SpreadsheetID == "" && cfg.SheetName == "" {
		return nil, fmt.Errorf("either spreadsheet id or sheet name must be set")
	}
	return &SheetsLoader{opts: cfg}, nil
}

// LoadRecords authenticates, resolves the spreadsheet and reads every row of its first worksheet.
func (l *SheetsLoader) LoadRecords(ctx context.Context) ([]Record, error) {
	creds, err := google.CredentialsFromJSON(ctx, []byte(l.opts.CredentialsJSON),
		sheets.SpreadsheetsReadonlyScope, drive.DriveMetadataReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse google credentials: %w", err)
	}

	id := l.opts.SpreadsheetID
	if id == "" {
		id, err = l.resolveByName(ctx, option.WithCredentials(creds))
		if err != nil {
			return nil, err
		}
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	ss, err := svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet %s: %w", id, err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("spreadsheet %s has no worksheets", id)
	}
	title := ss.Sheets[0].Properties.Title

	vr, err := svc.Spreadsheets.Values.Get(id, quoteSheetTitle(title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", title, err)
	}
	slog.Debug("SheetsLoader.LoadRecords: read worksheet", "spreadsheet", id, "worksheet", title, "rows", len(vr.Values))
	return rowsToRecords(stringifyRows(vr.Values)), nil
}

// resolveByName finds the spreadsheet ID for the configured sheet name through Drive.
func (l *SheetsLoader) resolveByName(ctx context.Context, opts ...option.ClientOption) (string, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create drive service: %w", err)
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(l.opts.SheetName, "'", `\'`), spreadsheetMimeType)
	list, err := svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search drive for %q: %w", l.opts.SheetName, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, l.opts.SheetName)
	}
	slog.Debug("SheetsLoader.resolveByName: resolved sheet", "name", l.opts.SheetName, "id", list.Files[0].Id)
	return list.Files[0].Id, nil
}

// quoteSheetTitle quotes a worksheet title for use as an A1 range.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func stringifyRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rows[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return rows
}
