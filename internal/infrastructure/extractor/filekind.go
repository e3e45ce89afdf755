package extractor

import (
	"path/filepath"
	"strings"
)

// FileKind governs which extraction strategy handles a stored document.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindText
	KindJSON
	KindYAML
	KindCSV
	KindPDF
	KindSpreadsheet
	KindImage
)

func (k FileKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindJSON:
		return "json"
	case KindYAML:
		return "yaml"
	case KindCSV:
		return "csv"
	case KindPDF:
		return "pdf"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// KindOf classifies a document by its filename extension. The MIME type sent
// by clients is advisory at best, so the extension decides.
func KindOf(filename string) FileKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".rst", ".log", ".html", ".htm":
		return KindText
	case ".json":
		return KindJSON
	case ".yaml", ".yml":
		return KindYAML
	case ".csv":
		return KindCSV
	case ".pdf":
		return KindPDF
	case ".xlsx", ".xlsm", ".xltx":
		return KindSpreadsheet
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return KindImage
	default:
		return KindUnknown
	}
}
