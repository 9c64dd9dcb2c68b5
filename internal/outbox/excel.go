package outbox

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/fsutil"
)

// BucketFrequency names how often the Excel sink rolls its CSV over
// into a finished workbook.
type BucketFrequency string

const (
	BucketDaily   BucketFrequency = "daily"
	BucketWeekly  BucketFrequency = "weekly"
	BucketMonthly BucketFrequency = "monthly"
)

var excelColumns = []string{"timestamp", "plate", "direction", "speed", "score", "dscore"}

// BucketKey returns the bucket identifier t falls into for freq — the
// CSV file name (without extension) rows for t are appended to.
func BucketKey(t time.Time, freq BucketFrequency) string {
	switch freq {
	case BucketWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case BucketMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// ExcelWriter appends decision rows to a bucketed CSV and, on rollover,
// converts stale buckets into .xlsx workbooks. No spreadsheet library
// appears anywhere in the example corpus, so the workbook is produced
// directly as a minimal OOXML zip via archive/zip and encoding/xml.
type ExcelWriter struct {
	fs   fsutil.FileSystem
	dir  string
	freq BucketFrequency
	// OnRollover, if set, is called with the finished workbook's path
	// so the caller can schedule the notification email.
	OnRollover func(xlsxPath string)
}

// NewExcelWriter builds an ExcelWriter spooling into dir.
func NewExcelWriter(fs fsutil.FileSystem, dir string, freq BucketFrequency) *ExcelWriter {
	return &ExcelWriter{fs: fs, dir: dir, freq: freq}
}

// AppendRow appends d as one CSV row in the bucket for d.Timestamp,
// writing a header row the first time a bucket file is created.
func (w *ExcelWriter) AppendRow(d *decision.Decision) error {
	bucket := BucketKey(d.Timestamp, w.freq)
	path := w.dir + "/" + bucket + ".csv"

	existing, err := w.fs.ReadFile(path)
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err != nil || len(existing) == 0 {
		if err := cw.Write(excelColumns); err != nil {
			return err
		}
	} else {
		buf.Write(existing)
		cw = csv.NewWriter(&buf)
	}

	row := []string{
		d.Timestamp.Format(time.RFC3339),
		d.Plate,
		string(d.Direction),
		fmt.Sprintf("%.2f", d.Speed),
		fmt.Sprintf("%.4f", d.Score),
		fmt.Sprintf("%.4f", d.DScore),
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(w.fs, path, buf.Bytes(), 0644)
}

// Rollover converts every CSV bucket other than now's current bucket
// into a finished .xlsx workbook, deletes the CSV, and invokes
// OnRollover for each workbook produced.
func (w *ExcelWriter) Rollover(now time.Time) error {
	current := BucketKey(now, w.freq)
	entries, err := fsutil.ListOldestFirst(w.dir, ".csv")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	for _, e := range entries {
		base := strings.TrimSuffix(e.Path[strings.LastIndexByte(e.Path, '/')+1:], ".csv")
		if base == current {
			continue
		}
		csvData, err := w.fs.ReadFile(e.Path)
		if err != nil {
			return err
		}
		xlsxData, err := csvToXLSX(csvData)
		if err != nil {
			return err
		}
		xlsxPath := w.dir + "/" + base + ".xlsx"
		if err := fsutil.AtomicWriteFile(w.fs, xlsxPath, xlsxData, 0644); err != nil {
			return err
		}
		if err := w.fs.Remove(e.Path); err != nil {
			return err
		}
		if w.OnRollover != nil {
			w.OnRollover(xlsxPath)
		}
	}
	return nil
}

// csvToXLSX converts CSV bytes into a minimal single-sheet OOXML
// workbook: every cell is an inline string, which avoids the separate
// shared-strings table a full xlsx writer would otherwise need.
func csvToXLSX(csvData []byte) ([]byte, error) {
	rows, err := csv.NewReader(bytes.NewReader(csvData)).ReadAll()
	if err != nil {
		return nil, err
	}

	var sheet strings.Builder
	sheet.WriteString(xml.Header)
	sheet.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	for r, row := range rows {
		fmt.Fprintf(&sheet, `<row r="%d">`, r+1)
		for c, cell := range row {
			ref := columnRef(c) + fmt.Sprint(r+1)
			fmt.Fprintf(&sheet, `<c r="%s" t="inlineStr"><is><t>%s</t></is></c>`, ref, xmlEscape(cell))
		}
		sheet.WriteString(`</row>`)
	}
	sheet.WriteString(`</sheetData></worksheet>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := map[string]string{
		"[Content_Types].xml":        contentTypesXML,
		"_rels/.rels":                relsXML,
		"xl/workbook.xml":            workbookXML,
		"xl/_rels/workbook.xml.rels": workbookRelsXML,
		"xl/worksheets/sheet1.xml":   sheet.String(),
	}
	// Stable order for reproducible (byte-identical on identical input)
	// output, matching the idempotent-rollover law.
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func columnRef(idx int) string {
	col := ""
	for idx >= 0 {
		col = string(rune('A'+idx%26)) + col
		idx = idx/26 - 1
	}
	return col
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>
<Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

const workbookXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="decisions" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

const workbookRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`
