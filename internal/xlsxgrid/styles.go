package xlsxgrid

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/campustools/gridcal/internal/timetable"
)

// Red band for cancellation fonts. The grid's editors don't use one exact
// red, so any sufficiently red font counts.
const (
	redMin   = 200
	greenMax = 50
	blueMax  = 50
)

type styleSheetXML struct {
	Fonts struct {
		Font []fontXML `xml:"font"`
	} `xml:"fonts"`
	CellXfs struct {
		Xf []struct {
			FontID int `xml:"fontId,attr"`
		} `xml:"xf"`
	} `xml:"cellXfs"`
}

type fontXML struct {
	Strike *strikeXML `xml:"strike"`
	Color  colorXML   `xml:"color"`
}

type strikeXML struct {
	Val string `xml:"val,attr"`
}

type colorXML struct {
	RGB string `xml:"rgb,attr"`
}

// CancelledCells scans the named sheet for cells whose cell format resolves
// to a strikethrough red font and returns their zero-based grid positions.
// Every failure mode degrades to an empty map: a workbook with no style
// table, no matching sheet or unreadable XML simply has nothing marked
// cancelled.
func (w *Workbook) CancelledCells(sheet string) map[timetable.CellRef]bool {
	cancelled := map[timetable.CellRef]bool{}

	entry, err := w.sheet(sheet)
	if err != nil {
		return cancelled
	}
	formats := w.cancelledFormatIDs()
	if len(formats) == 0 {
		return cancelled
	}

	data, err := w.readPart(entry.path)
	if err != nil {
		return cancelled
	}
	var ws worksheetXML
	if err := xml.Unmarshal(data, &ws); err != nil {
		return cancelled
	}

	for _, row := range ws.SheetData.Rows {
		for _, c := range row.Cells {
			if !formats[c.Style] {
				continue
			}
			r, col, ok := parseCellRef(c.R)
			if !ok {
				continue
			}
			cancelled[timetable.CellRef{Row: r, Col: col}] = true
		}
	}
	return cancelled
}

// cancelledFormatIDs resolves the style table to the set of cell format ids
// whose font is both struck through and red.
func (w *Workbook) cancelledFormatIDs() map[int]bool {
	ids := map[int]bool{}

	data, err := w.readPart(stylesPart)
	if err != nil {
		return ids
	}
	var st styleSheetXML
	if err := xml.Unmarshal(data, &st); err != nil {
		return ids
	}

	cancelledFonts := map[int]bool{}
	for i, font := range st.Fonts.Font {
		if font.struck() && font.red() {
			cancelledFonts[i] = true
		}
	}
	if len(cancelledFonts) == 0 {
		return ids
	}

	for i, xf := range st.CellXfs.Xf {
		if cancelledFonts[xf.FontID] {
			ids[i] = true
		}
	}
	return ids
}

// struck reports whether the font carries an effective strikethrough: the
// element present with no val, or a truthy val.
func (f fontXML) struck() bool {
	if f.Strike == nil {
		return false
	}
	switch strings.ToLower(f.Strike.Val) {
	case "", "1", "true", "on":
		return true
	}
	return false
}

// red reports whether the font color falls in the red band. The color is a
// 6-hex RGB value or an 8-hex ARGB value whose trailing 6 digits are the RGB.
func (f fontXML) red() bool {
	rgb := strings.TrimSpace(f.Color.RGB)
	if len(rgb) == 8 {
		rgb = rgb[2:]
	}
	if len(rgb) != 6 {
		return false
	}
	r, err1 := strconv.ParseUint(rgb[0:2], 16, 16)
	g, err2 := strconv.ParseUint(rgb[2:4], 16, 16)
	b, err3 := strconv.ParseUint(rgb[4:6], 16, 16)
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	return r > redMin && g < greenMax && b < blueMax
}
