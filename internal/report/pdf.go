package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const fontFamily = "Helvetica"

// RenderPDF writes the report as a single A4 document.
func RenderPDF(w io.Writer, r Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s report", r.ProjectName), true)
	pdf.SetAuthor("teamflow", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.CellFormat(0, 10, tr(r.ProjectName), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, 6, "Generated "+r.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	hr(pdf)

	sectionTitle(pdf, "Summary")
	kvLine(pdf, "Tasks", fmt.Sprintf("%d", r.Total))
	kvLine(pdf, "Completed", fmt.Sprintf("%d (%.0f%%)", r.Completed, r.CompletionRate*100))
	kvLine(pdf, "Overdue", fmt.Sprintf("%d", r.Overdue))
	pdf.Ln(2)

	table(pdf, tr, "By section", r.BySection)
	table(pdf, tr, "By priority", r.ByPriority)
	table(pdf, tr, "By assignee", r.ByAssignee)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return pdf.Output(w)
}

func hr(pdf *gofpdf.Fpdf) {
	left, _, right, _ := pdf.GetMargins()
	width, _ := pdf.GetPageSize()
	y := pdf.GetY() + 2
	pdf.SetLineWidth(0.2)
	pdf.Line(left, y, width-right, y)
	pdf.Ln(5)
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func kvLine(pdf *gofpdf.Fpdf, key, value string) {
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(45, 6, key, "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 11)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func table(pdf *gofpdf.Fpdf, tr func(string) string, title string, rows []Bucket) {
	sectionTitle(pdf, title)
	if len(rows) == 0 {
		pdf.SetFont(fontFamily, "I", 10)
		pdf.CellFormat(0, 6, "No tasks", "", 1, "L", false, 0, "")
		pdf.Ln(2)
		return
	}

	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(238, 238, 242)
	pdf.CellFormat(90, 7, "Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Total", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Completed", "1", 1, "R", true, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	for _, b := range rows {
		pdf.CellFormat(90, 6, tr(b.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", b.Total), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", b.Completed), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}
