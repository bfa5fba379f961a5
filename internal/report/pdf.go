package report

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"smartattend/internal/ledger"
)

// WritePDF renders the given ledger view as a two-column bordered table
// (Student, Timestamp) and writes it to path.
func WritePDF(records []ledger.Record, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)

	pdf.CellFormat(100, 10, "Student", "1", 0, "", false, 0, "")
	pdf.CellFormat(80, 10, "Timestamp", "1", 1, "", false, 0, "")
	for _, rec := range records {
		pdf.CellFormat(100, 10, rec.Identity, "1", 0, "", false, 0, "")
		pdf.CellFormat(80, 10, rec.Timestamp, "1", 1, "", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}
