package docs

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"orderdesk/internal/core"
)

// RenderShippingLabels renders one A6 label page per order: receiver block,
// order number, and the batch reference the warehouse sorts by.
func RenderShippingLabels(batchID int64, orders []core.Order) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A6", "")
	pdf.SetMargins(8, 8, 8)

	for _, o := range orders {
		pdf.AddPage()

		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, o.OrderNumber, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, o.CustomerName, "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, o.Phone, "", 1, "L", false, 0, "")
		pdf.MultiCell(0, 6, o.Address, "", "L", false)
		pdf.CellFormat(0, 6, o.City, "", 1, "L", false, 0, "")

		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, fmt.Sprintf("Batch #%d", batchID), "", 1, "L", false, 0, "")
		if o.TrackingNumber != nil {
			pdf.CellFormat(0, 5, "Tracking: "+*o.TrackingNumber, "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render shipping labels: %w", err)
	}
	return buf.Bytes(), nil
}
