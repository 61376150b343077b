package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"pmanager/internal/core"
	"pmanager/internal/sheets"
)

func fakeSheets(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "sheet-123"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	return c
}

func sampleRow() sheets.JournalRow {
	return sheets.JournalRow{
		EventID:      41,
		EntryID:      7,
		AccountID:    3,
		Action:       core.ActionPost,
		Kind:         core.EntryExpense,
		Category:     "rent",
		EntryDate:    core.NewDate(2024, 5, 1),
		Amount:       core.Cents(120050),
		Delta:        core.Cents(-120050),
		BalanceAfter: core.Cents(879950),
		RecordedAt:   time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewWithOptions_MissingSpreadsheetID(t *testing.T) {
	_, err := NewWithOptions(context.Background(), Config{}, goption.WithoutAuthentication())
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewWithOptions_DefaultSheet(t *testing.T) {
	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "x"}, goption.WithoutAuthentication())
	require.NoError(t, err)
	assert.Equal(t, DefaultJournalSheet, c.journalSheet)
	assert.Equal(t, "Journal!A:K", c.columns())
}

func TestServiceAccountJSON(t *testing.T) {
	ctx := context.Background()
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := serviceAccountJSON(ctx, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	b, err := serviceAccountJSON(ctx, Config{CredentialsJSON: ` {"type":"service_account"} `, CredentialsFile: "/nope"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(b))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))
	b, err = serviceAccountJSON(ctx, Config{CredentialsFile: path})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err = serviceAccountJSON(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	_, err = serviceAccountJSON(ctx, Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.ErrorContains(t, err, "read service account file")
}

func TestAppendJournal(t *testing.T) {
	var got struct {
		Values [][]any `json:"values"`
	}
	var query string
	c := fakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-123/values/"), r.URL.Path)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		query = r.URL.RawQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123","updates":{"updatedRange":"Journal!A8:K8","updatedRows":1}}`))
	})

	ref, err := c.AppendJournal(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "Journal!A8:K8", ref)
	assert.Contains(t, query, "valueInputOption=USER_ENTERED")
	assert.Contains(t, query, "insertDataOption=INSERT_ROWS")

	require.Len(t, got.Values, 1)
	row := got.Values[0]
	require.Len(t, row, len(sheets.JournalColumns))
	assert.Equal(t, float64(41), row[0])
	assert.Equal(t, "post", row[3])
	assert.Equal(t, "2024-05-01", row[6])
	assert.Equal(t, "1200.50", row[7])
	assert.Equal(t, "-1200.50", row[8])
	assert.Equal(t, "2024-05-01T09:30:00Z", row[10])
}

func TestAppendJournal_APIError(t *testing.T) {
	c := fakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller does not have permission"}}`))
	})
	_, err := c.AppendJournal(context.Background(), sampleRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append to Journal")
}

func TestAppendJournal_InvalidRow(t *testing.T) {
	c := &Client{spreadsheetID: "x", journalSheet: "Journal"}
	row := sampleRow()
	row.EventID = 0
	_, err := c.AppendJournal(context.Background(), row)
	assert.ErrorContains(t, err, "validation failed")

	_, err = c.AppendJournal(context.Background(), sampleRow())
	assert.ErrorContains(t, err, "not initialized")
}

func TestJournalEventIDs(t *testing.T) {
	c := fakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Journal!A1:A6","values":[["Event"],["1"],[""],["#note"],["3"],["3"],["-2"]]}`))
	})
	ids, err := c.JournalEventIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, int64(1))
	assert.Contains(t, ids, int64(3))
}

func TestParseEventIDs(t *testing.T) {
	ids := parseEventIDs([][]any{{}, {float64(12)}, {" 13 "}, {"abc"}, {"0"}})
	assert.Equal(t, map[int64]struct{}{12: {}, 13: {}}, ids)
}
