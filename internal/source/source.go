// Package source fetches the raw timetable grid from wherever the registrar
// publishes it: a live Google spreadsheet, the same document uploaded as a
// flat .xlsx file, or a local file.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/campustools/gridcal/internal/timetable"
	"github.com/campustools/gridcal/internal/xlsxgrid"
)

// Snapshot is one fetched grid. Cancelled carries the strikethrough-red
// styling side channel when the source format exposes it; HasStyles reports
// whether that channel existed at all, so callers can tell "no styling
// available" apart from "nothing marked cancelled".
type Snapshot struct {
	Grid      [][]string
	Cancelled map[timetable.CellRef]bool
	HasStyles bool
}

// Source produces grid snapshots. Tab selects a worksheet by name; an empty
// tab, or a tab the document no longer has, resolves to the first worksheet.
type Source interface {
	Fetch(ctx context.Context, tab string) (Snapshot, error)
}

// File reads a spreadsheet workbook from the local filesystem. Used for
// manually downloaded timetables and in development.
type File struct {
	Path string
}

func (f File) Fetch(_ context.Context, tab string) (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read workbook %s: %w", f.Path, err)
	}
	return fromWorkbook(data, tab)
}

// fromWorkbook parses flat spreadsheet bytes into a snapshot, falling back
// to the first worksheet when the named tab is gone.
func fromWorkbook(data []byte, tab string) (Snapshot, error) {
	wb, err := xlsxgrid.Open(data)
	if err != nil {
		return Snapshot{}, err
	}

	grid, err := wb.Grid(tab)
	if errors.Is(err, xlsxgrid.ErrSheetNotFound) && tab != "" {
		tab = ""
		grid, err = wb.Grid(tab)
	}
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Grid:      grid,
		Cancelled: wb.CancelledCells(tab),
		HasStyles: true,
	}, nil
}
