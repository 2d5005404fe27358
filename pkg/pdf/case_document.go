// Package pdf renders case documents with fpdf.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"
)

// CaseDocument is the printable view of one case.
type CaseDocument struct {
	Id          int64
	Title       string
	ClientName  string
	Description string
	Status      string
	Attributes  map[string]interface{}
	CreatedBy   string
	CreatedAt   time.Time
	GeneratedAt time.Time
}

const (
	pageMargin = 20.0
	labelWidth = 40.0
	lineHeight = 7.0
)

// RenderCase lays the case out on A4 pages and returns the PDF bytes.
func RenderCase(doc CaseDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(fmt.Sprintf("Case #%d", doc.Id), true)
	pdf.SetCreator("casebook", true)
	pdf.AliasNbPages("")

	// Core fonts are cp1252; translate UTF-8 input.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	generatedAt := doc.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s", generatedAt.Format("2006-01-02 15:04 MST")), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 10, tr(fmt.Sprintf("Case #%d: %s", doc.Id, doc.Title)), "", "L", false)
	pdf.Ln(2)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pageMargin, pdf.GetY(), 210-pageMargin, pdf.GetY())
	pdf.Ln(4)

	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(labelWidth, lineHeight, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, lineHeight, tr(value), "", "L", false)
	}

	field("Client", doc.ClientName)
	field("Status", doc.Status)
	if !doc.CreatedAt.IsZero() {
		field("Opened", doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	field("Created by", doc.CreatedBy)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, lineHeight+1, "Description", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	description := doc.Description
	if description == "" {
		description = "No description."
	}
	pdf.MultiCell(0, lineHeight-1, tr(description), "", "L", false)

	if len(doc.Attributes) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, lineHeight+1, "Details", "", 1, "L", false, 0, "")

		keys := make([]string, 0, len(doc.Attributes))
		for k := range doc.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pdf.SetFillColor(245, 245, 245)
		for i, k := range keys {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(labelWidth+20, lineHeight, tr(k), "1", 0, "L", i%2 == 0, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, lineHeight, tr(fmt.Sprint(doc.Attributes[k])), "1", 1, "L", i%2 == 0, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render case %d: %w", doc.Id, err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name for a case document.
func FileName(id int64) string {
	return fmt.Sprintf("case-%d.pdf", id)
}
