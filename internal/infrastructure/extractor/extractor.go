package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/core/ports"
)

// Extractor turns a stored source file into plain text, dispatching on the
// file kind. Unknown kinds yield empty text rather than an error so one odd
// upload cannot wedge the indexing worker.
type Extractor struct {
	storage ports.ObjectStorage
	ocr     ports.ImageTextExtractor
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// WithOCR plugs in an image-text backend. Without one, image uploads extract
// to empty text.
func (e *Extractor) WithOCR(ocr ports.ImageTextExtractor) *Extractor {
	e.ocr = ocr
	return e
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	kind := KindOf(doc.Filename)
	switch kind {
	case KindText:
		return extractText(doc.Filename, raw)
	case KindJSON:
		return extractJSON(doc.Filename, raw)
	case KindYAML:
		return extractYAML(doc.Filename, raw)
	case KindCSV:
		return extractCSV(doc.Filename, raw)
	case KindPDF:
		return extractPDF(raw)
	case KindSpreadsheet:
		return extractSpreadsheet(raw)
	case KindImage:
		if e.ocr == nil {
			slog.Warn("no OCR backend configured, skipping image", "filename", doc.Filename)
			return "", nil
		}
		return e.ocr.ExtractImageText(ctx, raw)
	default:
		slog.Warn("unsupported file kind, skipping extraction", "filename", doc.Filename, "kind", kind.String())
		return "", nil
	}
}

func extractText(filename string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8 text: %s", filename)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Structured text kinds are re-rendered with a filename header so chunks
// carry their provenance; anything that fails to parse falls back to the
// raw text.

func extractJSON(filename string, raw []byte) (string, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("json parse failed, indexing raw text", "filename", filename, "error", err)
		return extractText(filename, raw)
	}
	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return extractText(filename, raw)
	}
	return fmt.Sprintf("JSON File: %s\n\n%s", filename, pretty), nil
}

func extractYAML(filename string, raw []byte) (string, error) {
	var data any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		slog.Warn("yaml parse failed, indexing raw text", "filename", filename, "error", err)
		return extractText(filename, raw)
	}
	rendered, err := yaml.Marshal(data)
	if err != nil {
		return extractText(filename, raw)
	}
	return fmt.Sprintf("YAML File: %s\n\n%s", filename, strings.TrimSpace(string(rendered))), nil
}

const csvSampleRows = 5

// extractCSV summarizes the table instead of dumping every cell: columns,
// row count and the first few rows keyed by column name.
func extractCSV(filename string, raw []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		slog.Warn("csv parse failed, indexing raw text", "filename", filename, "error", err)
		return extractText(filename, raw)
	}
	if len(records) == 0 {
		return "", nil
	}

	header := records[0]
	rows := records[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "CSV File: %s\n\n", filename)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(header, ", "))
	fmt.Fprintf(&b, "Total Rows: %d\n", len(rows))
	for i, row := range rows {
		if i == csvSampleRows {
			break
		}
		if i == 0 {
			fmt.Fprintf(&b, "\nSample Data (first %d rows):\n", csvSampleRows)
		}
		fmt.Fprintf(&b, "\nRow %d:\n", i+1)
		for j, col := range header {
			value := ""
			if j < len(row) {
				value = row[j]
			}
			fmt.Fprintf(&b, "  %s: %s\n", col, value)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// extractSpreadsheet renders every sheet as tab-separated rows with a sheet
// header, which chunks reasonably and keeps cell adjacency for retrieval.
func extractSpreadsheet(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## " + sheet + "\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}
