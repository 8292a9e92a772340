package drive

import "strings"

// Drive MIME types.
const (
	MimeFolder       = "application/vnd.google-apps.folder"
	MimeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimeDocument     = "application/vnd.google-apps.document"
	MimePresentation = "application/vnd.google-apps.presentation"
	MimeDrawing      = "application/vnd.google-apps.drawing"
	MimeForm         = "application/vnd.google-apps.form"
)

// nativePrefix marks Drive-proprietary document types. They have no
// byte-identical representation and must be exported to a standard format.
const nativePrefix = "application/vnd.google-apps."

// ExportFormat pairs the content type requested from the export endpoint
// with the filename extension given to the local copy.
type ExportFormat struct {
	MimeType  string
	Extension string
}

// Export content types.
const (
	exportXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	exportPPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	exportPDF  = "application/pdf"
	exportCSV  = "text/csv"
)

// exportFormats is the fixed native-type → export-format table.
// Unknown native types fall back to PDF.
var exportFormats = map[string]ExportFormat{
	MimeSpreadsheet:  {MimeType: exportXLSX, Extension: ".xlsx"},
	MimeDocument:     {MimeType: exportDOCX, Extension: ".docx"},
	MimePresentation: {MimeType: exportPPTX, Extension: ".pptx"},
	MimeDrawing:      {MimeType: exportPDF, Extension: ".pdf"},
	MimeForm:         {MimeType: exportPDF, Extension: ".pdf"},
}

// pdfFallback is the export format for native types not in the table.
var pdfFallback = ExportFormat{MimeType: exportPDF, Extension: ".pdf"}

// csvFallback is attempted once when a spreadsheet's OpenXML export fails.
var csvFallback = ExportFormat{MimeType: exportCSV, Extension: ".csv"}

// IsNative reports whether mimeType is a Drive-proprietary document type
// that requires format conversion on download.
func IsNative(mimeType string) bool {
	return strings.HasPrefix(mimeType, nativePrefix)
}

// ExportFormatFor returns the export format for a native mime type.
// Types missing from the table export as PDF.
func ExportFormatFor(mimeType string) ExportFormat {
	if f, ok := exportFormats[mimeType]; ok {
		return f
	}

	return pdfFallback
}

// FallbackFormatFor returns the secondary export format for a native mime
// type, if one exists. Only spreadsheets have a fallback (CSV); all other
// export failures are final.
func FallbackFormatFor(mimeType string) (ExportFormat, bool) {
	if mimeType == MimeSpreadsheet {
		return csvFallback, true
	}

	return ExportFormat{}, false
}
