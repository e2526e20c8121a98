package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"example.com/fitdec/internal/fit"
)

// SaveSummaryPDF renders the given decode summary into a PDF document. When
// fileHash is non-empty a QR code encoding it is placed next to the summary.
func SaveSummaryPDF(sum fit.Summary, fileHash, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Decode Report", false)
	pdf.SetAuthor("fitctl", false)
	pdf.SetCreator("fitctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "FIT Decode Report")
	addSummarySection(pdf, sum)
	if fileHash != "" {
		addHashSection(pdf, fileHash)
	}
	addMessageCountSection(pdf, sum.MessageCounts)
	addWarningsSection(pdf, sum.Warnings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, sum fit.Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Protocol Version", value: protocolLabel(sum.Header.ProtocolVersion)},
		{label: "Profile Version", value: profileLabel(sum.Header.ProfileVersion)},
		{label: "Data Size", value: fmt.Sprintf("%d bytes", sum.Header.DataSize)},
		{label: "Records", value: strconv.Itoa(sum.Records)},
		{label: "Definitions", value: strconv.Itoa(sum.Definitions)},
		{label: "Messages", value: strconv.Itoa(sum.Messages)},
		{label: "Checksum", value: checksumLabel(sum)},
		{label: "Warnings", value: strconv.Itoa(len(sum.Warnings))},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addHashSection(pdf *gofpdf.Fpdf, hash string) {
	png, err := FileHashToQR(hash, 160)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("filehash", opts, strings.NewReader(string(png)))
	x := pdf.GetX()
	y := pdf.GetY()
	pdf.ImageOptions("filehash", x, y, 30, 30, false, opts, 0, "")
	pdf.SetXY(x+34, y+12)
	pdf.SetFont("Helvetica", "", 8)
	pdf.MultiCell(0, 4, "SHA-256 "+hash, "", "L", false)
	pdf.SetXY(x, y+34)
}

func addMessageCountSection(pdf *gofpdf.Fpdf, counts map[string]int) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Messages")
	pdf.Ln(9)

	if len(counts) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No data messages decoded.", "", "L", false)
		pdf.Ln(2)
		return
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := []string{"Message", "Count"}
	widths := []float64{130, 40}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, name := range names {
		pdf.CellFormat(widths[0], 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.Itoa(counts[name]), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func addWarningsSection(pdf *gofpdf.Fpdf, warnings []fit.Warning) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Warnings")
	pdf.Ln(9)

	if len(warnings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No warnings recorded.", "", "L", false)
		return
	}

	for i, w := range warnings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s", i+1, w.Code)
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(w.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		if w.Record >= 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, fmt.Sprintf("Record %d", w.Record), "", "L", false)
		}

		pdf.Ln(2)
	}
}

func protocolLabel(v uint8) string {
	return fmt.Sprintf("%d.%d", v>>4, v&0x0F)
}

func profileLabel(v uint16) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

func checksumLabel(sum fit.Summary) string {
	if sum.CRCValid {
		return fmt.Sprintf("OK (0x%04X)", sum.CRCStored)
	}
	return fmt.Sprintf("MISMATCH (stored 0x%04X, computed 0x%04X)", sum.CRCStored, sum.CRCComputed)
}
