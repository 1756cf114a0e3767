package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Google fetches the grid from a Google spreadsheet. Live documents answer
// the values API directly; documents that are really uploaded .xlsx files
// are not natively queryable, so the fetch falls back to downloading the
// raw bytes through Drive and parsing them locally. Only that second path
// carries cell styling, and with it cancellation detection.
type Google struct {
	sheets        *sheetsapi.Service
	drive         *driveapi.Service
	spreadsheetID string
}

// NewGoogle builds a read-only source for one spreadsheet.
func NewGoogle(ctx context.Context, credentialsJSON []byte, spreadsheetID string) (*Google, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON,
		sheetsapi.SpreadsheetsReadonlyScope, driveapi.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheet credentials: %w", err)
	}
	sheetsSvc, err := sheetsapi.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("build sheets service: %w", err)
	}
	driveSvc, err := driveapi.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("build drive service: %w", err)
	}
	return &Google{sheets: sheetsSvc, drive: driveSvc, spreadsheetID: spreadsheetID}, nil
}

// defaultRange addresses the first visible worksheet when no tab name is
// usable. Column ZZ is far beyond any timetable's slot columns.
const defaultRange = "A:ZZ"

// Fetch tries the values API for the named tab, retries against the first
// worksheet when the tab is gone, and finally downloads the file through
// Drive when the document is not natively queryable.
func (g *Google) Fetch(ctx context.Context, tab string) (Snapshot, error) {
	if tab != "" {
		grid, err := g.values(ctx, quoteTab(tab))
		if err == nil {
			return Snapshot{Grid: grid}, nil
		}
		if !isAPIStatus(err, http.StatusBadRequest, http.StatusNotFound) {
			return Snapshot{}, fmt.Errorf("fetch tab %q: %w", tab, err)
		}
	}

	grid, err := g.values(ctx, defaultRange)
	if err == nil {
		return Snapshot{Grid: grid}, nil
	}
	if !isAPIStatus(err, http.StatusBadRequest, http.StatusNotFound) {
		return Snapshot{}, fmt.Errorf("fetch spreadsheet %s: %w", g.spreadsheetID, err)
	}

	return g.download(ctx, tab)
}

func (g *Google) values(ctx context.Context, readRange string) ([][]string, error) {
	resp, err := g.sheets.Spreadsheets.Values.Get(g.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return toGrid(resp.Values), nil
}

func (g *Google) download(ctx context.Context, tab string) (Snapshot, error) {
	resp, err := g.drive.Files.Get(g.spreadsheetID).Context(ctx).Download()
	if err != nil {
		return Snapshot{}, fmt.Errorf("download source file %s: %w", g.spreadsheetID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read source file %s: %w", g.spreadsheetID, err)
	}
	return fromWorkbook(data, tab)
}

// toGrid flattens the values API's dynamic cells to the formatted display
// strings the parser expects.
func toGrid(values [][]interface{}) [][]string {
	grid := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch val := v.(type) {
			case nil:
			case string:
				cells[j] = val
			default:
				cells[j] = fmt.Sprint(val)
			}
		}
		grid[i] = cells
	}
	return grid
}

// quoteTab wraps a tab name in the single quotes A1 notation requires,
// doubling embedded quotes.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func isAPIStatus(err error, codes ...int) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
}
