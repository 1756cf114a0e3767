// Package xlsxgrid reads spreadsheet workbooks (zip archives of XML parts)
// into the 2-D string grids the timetable parser consumes, and extracts the
// strikethrough-red cell styling the grid's editors use to mark cancelled
// sessions.
package xlsxgrid

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// ErrSheetNotFound indicates the workbook has no sheet with the requested
// name. Callers fall back to the first sheet when the configured tab is gone.
var ErrSheetNotFound = errors.New("sheet not found")

const (
	workbookPart      = "xl/workbook.xml"
	workbookRelsPart  = "xl/_rels/workbook.xml.rels"
	sharedStringsPart = "xl/sharedStrings.xml"
	stylesPart        = "xl/styles.xml"
)

// Workbook is a parsed spreadsheet archive held in memory. The zip directory,
// sheet index and shared string table are loaded once at Open; individual
// worksheets are decoded on demand.
type Workbook struct {
	files  map[string]*zip.File
	sheets []sheetEntry
	shared []string
}

// sheetEntry pairs a sheet's display name with its resolved part path,
// in workbook order.
type sheetEntry struct {
	name string
	path string
}

// Open parses workbook bytes. It fails on a broken archive or an unreadable
// sheet index; a missing shared string table is fine, the workbook simply has
// no string cells yet.
func Open(data []byte) (*Workbook, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open workbook archive: %w", err)
	}

	w := &Workbook{files: make(map[string]*zip.File, len(r.File))}
	for _, f := range r.File {
		w.files[f.Name] = f
	}

	if err := w.loadSheetIndex(); err != nil {
		return nil, err
	}
	if err := w.loadSharedStrings(); err != nil {
		return nil, err
	}
	return w, nil
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		names[i] = s.name
	}
	return names
}

// Grid decodes the named sheet into a row-major grid of display strings,
// zero-based in both axes. Cells absent from the sheet XML come back as ""
// so column positions survive sparse rows. An empty name selects the first
// sheet.
func (w *Workbook) Grid(sheet string) ([][]string, error) {
	entry, err := w.sheet(sheet)
	if err != nil {
		return nil, err
	}

	data, err := w.readPart(entry.path)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", entry.name, err)
	}

	var ws worksheetXML
	if err := xml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decode sheet %q: %w", entry.name, err)
	}

	var grid [][]string
	for _, row := range ws.SheetData.Rows {
		for _, c := range row.Cells {
			r, col, ok := parseCellRef(c.R)
			if !ok {
				continue
			}
			value := w.cellValue(c)
			if value == "" {
				continue
			}
			grid = growGrid(grid, r, col)
			grid[r][col] = value
		}
	}
	return grid, nil
}

func (w *Workbook) sheet(name string) (sheetEntry, error) {
	if len(w.sheets) == 0 {
		return sheetEntry{}, ErrSheetNotFound
	}
	if name == "" {
		return w.sheets[0], nil
	}
	for _, s := range w.sheets {
		if s.name == name {
			return s, nil
		}
	}
	for _, s := range w.sheets {
		if strings.EqualFold(s.name, name) {
			return s, nil
		}
	}
	return sheetEntry{}, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

func (w *Workbook) readPart(name string) ([]byte, error) {
	f, ok := w.files[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type workbookXML struct {
	Sheets struct {
		Sheet []struct {
			Name  string `xml:"name,attr"`
			RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func (w *Workbook) loadSheetIndex() error {
	data, err := w.readPart(workbookPart)
	if err != nil {
		return fmt.Errorf("read workbook index: %w", err)
	}
	var wb workbookXML
	if err := xml.Unmarshal(data, &wb); err != nil {
		return fmt.Errorf("decode workbook index: %w", err)
	}

	targets := w.relationshipTargets()
	for i, s := range wb.Sheets.Sheet {
		part, ok := targets[s.RelID]
		if !ok {
			// Older writers omit the rels part; sheets are numbered in order.
			part = fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		}
		w.sheets = append(w.sheets, sheetEntry{name: s.Name, path: part})
	}
	return nil
}

// relationshipTargets maps relationship ids to part paths, normalized
// relative to the archive root.
func (w *Workbook) relationshipTargets() map[string]string {
	targets := map[string]string{}
	data, err := w.readPart(workbookRelsPart)
	if err != nil {
		return targets
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return targets
	}
	for _, rel := range rels.Relationships {
		target := rel.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join("xl", target)
		}
		targets[rel.ID] = path.Clean(target)
	}
	return targets
}

type sharedStringsXML struct {
	Items []struct {
		T    string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

func (w *Workbook) loadSharedStrings() error {
	if _, ok := w.files[sharedStringsPart]; !ok {
		return nil
	}
	data, err := w.readPart(sharedStringsPart)
	if err != nil {
		return fmt.Errorf("read shared strings: %w", err)
	}
	var sst sharedStringsXML
	if err := xml.Unmarshal(data, &sst); err != nil {
		return fmt.Errorf("decode shared strings: %w", err)
	}

	w.shared = make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if len(item.Runs) == 0 {
			w.shared[i] = item.T
			continue
		}
		var b strings.Builder
		for _, run := range item.Runs {
			b.WriteString(run.T)
		}
		w.shared[i] = b.String()
	}
	return nil
}

type worksheetXML struct {
	SheetData struct {
		Rows []struct {
			Cells []cellXML `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

type cellXML struct {
	R      string `xml:"r,attr"`
	Style  int    `xml:"s,attr"`
	Type   string `xml:"t,attr"`
	V      string `xml:"v"`
	Inline struct {
		T    string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"is"`
}

// cellValue resolves one cell to its display string. Shared-string indexes
// that fall outside the table resolve to "" rather than failing the sheet.
func (w *Workbook) cellValue(c cellXML) string {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.V))
		if err != nil || idx < 0 || idx >= len(w.shared) {
			return ""
		}
		return w.shared[idx]
	case "inlineStr":
		if len(c.Inline.Runs) == 0 {
			return c.Inline.T
		}
		var b strings.Builder
		for _, run := range c.Inline.Runs {
			b.WriteString(run.T)
		}
		return b.String()
	default:
		return c.V
	}
}

// parseCellRef converts an "A1"-style reference to zero-based row and
// column indexes.
func parseCellRef(ref string) (row, col int, ok bool) {
	i := 0
	for i < len(ref) {
		ch := ref[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			break
		}
		col = col*26 + int(ch-'A') + 1
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, false
	}
	for _, ch := range ref[i:] {
		if ch < '0' || ch > '9' {
			return 0, 0, false
		}
		row = row*10 + int(ch-'0')
	}
	if row == 0 {
		return 0, 0, false
	}
	return row - 1, col - 1, true
}

func growGrid(grid [][]string, row, col int) [][]string {
	for len(grid) <= row {
		grid = append(grid, nil)
	}
	for len(grid[row]) <= col {
		grid[row] = append(grid[row], "")
	}
	return grid
}
