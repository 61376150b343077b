package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	applog "pmanager/internal/log"
	"pmanager/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultJournalSheet is the tab used when none is configured.
const DefaultJournalSheet = "Journal"

type Config struct {
	SpreadsheetID string
	JournalSheet  string
	// Service account credentials, inline JSON taking precedence over a file.
	CredentialsJSON string
	CredentialsFile string
	Logger          *applog.Logger
}

func (c Config) logger() *applog.Logger {
	l := c.Logger
	if l == nil {
		l = applog.Default()
	}
	return l.WithComponent(applog.ComponentSheets)
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	journalSheet  string
	logger        *applog.Logger
}

var (
	_ sheets.JournalWriter = (*Client)(nil)
	_ sheets.JournalReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := serviceAccountJSON(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions creates a client with explicit API client options in place
// of the service account lookup.
func NewWithOptions(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.JournalSheet)
	if sheet == "" {
		sheet = DefaultJournalSheet
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger := cfg.logger()
	logger.InfoContext(ctx, "Google Sheets journal ready", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: id, journalSheet: sheet, logger: logger}, nil
}

func serviceAccountJSON(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	logger := cfg.logger()
	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendJournal adds the row after the last row of the journal sheet and
// returns the A1 range it landed in.
func (c *Client) AppendJournal(ctx context.Context, row sheets.JournalRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := c.columns()
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		c.logger.WarnContext(ctx, "Journal append failed", append(applog.NewFields().
			WithLedgerEvent(row.EventID, row.EntryID).
			WithError(err).
			ToSlice(), "sheet", c.journalSheet)...)
		return "", fmt.Errorf("append to %s: %w", c.journalSheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// JournalEventIDs reads the event column of the journal.
func (c *Client) JournalEventIDs(ctx context.Context) (map[int64]struct{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", c.journalSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseEventIDs(resp.Values), nil
}

func (c *Client) columns() string {
	last := rune('A' + len(sheets.JournalColumns) - 1)
	return fmt.Sprintf("%s!A:%c", c.journalSheet, last)
}
