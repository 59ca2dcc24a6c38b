package docs

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"orderdesk/internal/core"
)

// ExpandTemplate substitutes {field} placeholders in a courier column template
// with values from the order. Unknown placeholders expand to the empty string,
// so a saved mapping never breaks an export.
func ExpandTemplate(tmpl string, o *core.Order) string {
	fields := map[string]string{
		"order_number":  o.OrderNumber,
		"customer_name": o.CustomerName,
		"phone":         o.Phone,
		"address":       o.Address,
		"city":          o.City,
		"subtotal":      o.Subtotal.StringFixed(2),
		"shipping_fee":  o.ShippingFee.StringFixed(2),
		"total":         o.Total.StringFixed(2),
		"tracking_number": func() string {
			if o.TrackingNumber != nil {
				return *o.TrackingNumber
			}
			return ""
		}(),
	}

	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		b.WriteString(fields[rest[open+1:open+close]])
		rest = rest[open+close+1:]
	}
	return b.String()
}

// RenderCourierCSV renders one CSV row per order using the saved column
// mapping. The header row comes first.
func RenderCourierCSV(settings *core.CourierExportSettings, orders []core.Order) ([]byte, int, error) {
	if len(settings.Columns) == 0 {
		return nil, 0, fmt.Errorf("courier settings %q have no columns", settings.Name)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(settings.Columns))
	for i, col := range settings.Columns {
		header[i] = col.Header
	}
	if err := w.Write(header); err != nil {
		return nil, 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range orders {
		row := make([]string, len(settings.Columns))
		for j, col := range settings.Columns {
			row[j] = ExpandTemplate(col.Template, &orders[i])
		}
		if err := w.Write(row); err != nil {
			return nil, 0, fmt.Errorf("failed to write CSV row for %s: %w", orders[i].OrderNumber, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), len(orders), nil
}
