// Package docs renders warehouse-facing documents: the packing list, the
// per-order packing slips, shipping label PDFs, and the courier CSV. Documents
// render exclusively from the batch snapshot, never from live order rows.
package docs

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"orderdesk/internal/core"
)

// PickLine is one aggregated row of the packing list: total quantity of one
// SKU across the whole batch.
type PickLine struct {
	SKU         string
	ProductName string
	TotalQty    int
	OrderCount  int
}

// GroupSnapshotBySKU aggregates snapshot items into pick lines sorted by SKU.
func GroupSnapshotBySKU(items []core.BatchSnapshotItem) []PickLine {
	type agg struct {
		line   PickLine
		orders map[int64]bool
	}
	bySKU := make(map[string]*agg)
	for _, it := range items {
		a, ok := bySKU[it.SKU]
		if !ok {
			a = &agg{
				line:   PickLine{SKU: it.SKU, ProductName: it.ProductName},
				orders: make(map[int64]bool),
			}
			bySKU[it.SKU] = a
		}
		a.line.TotalQty += it.Qty
		a.orders[it.OrderID] = true
	}

	lines := make([]PickLine, 0, len(bySKU))
	for _, a := range bySKU {
		a.line.OrderCount = len(a.orders)
		lines = append(lines, a.line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKU < lines[j].SKU })
	return lines
}

var packingListTmpl = template.Must(template.New("packing_list").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Packing List - Batch #{{.Batch.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #333; padding: 6px 10px; text-align: left; }
th { background: #eee; }
.meta { color: #555; margin-bottom: 1em; }
</style>
</head>
<body>
<h1>Packing List - Batch #{{.Batch.ID}}</h1>
<div class="meta">
{{.Batch.OrderCount}} orders · created {{.Batch.CreatedAt.Format "2006-01-02 15:04"}} by {{.Batch.CreatedBy}} · printed {{.PrintedAt.Format "2006-01-02 15:04"}}
</div>
<table>
<tr><th>SKU</th><th>Product</th><th>Total Qty</th><th>Orders</th></tr>
{{range .Lines}}<tr><td>{{.SKU}}</td><td>{{.ProductName}}</td><td>{{.TotalQty}}</td><td>{{.OrderCount}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// RenderPackingList renders the SKU-aggregated pick sheet for a batch.
func RenderPackingList(batch *core.Batch, items []core.BatchSnapshotItem, printedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := packingListTmpl.Execute(&buf, struct {
		Batch     *core.Batch
		Lines     []PickLine
		PrintedAt time.Time
	}{batch, GroupSnapshotBySKU(items), printedAt})
	if err != nil {
		return nil, fmt.Errorf("failed to render packing list: %w", err)
	}
	return buf.Bytes(), nil
}

// SlipOrder pairs one order with its snapshot lines for slip rendering.
type SlipOrder struct {
	Order core.Order
	Items []core.BatchSnapshotItem
}

// BuildSlipOrders joins batch orders with their snapshot lines, in order id
// order. Orders with no snapshot lines are skipped.
func BuildSlipOrders(orders []core.Order, items []core.BatchSnapshotItem) []SlipOrder {
	byOrder := make(map[int64][]core.BatchSnapshotItem)
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	var slips []SlipOrder
	for _, o := range orders {
		its, ok := byOrder[o.ID]
		if !ok {
			continue
		}
		slips = append(slips, SlipOrder{Order: o, Items: its})
	}
	return slips
}

var packingSlipsTmpl = template.Must(template.New("packing_slips").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Packing Slips - Batch #{{.Batch.ID}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
.slip { page-break-after: always; padding: 2em; }
h2 { font-size: 1.2em; margin-bottom: 0.2em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #333; padding: 5px 8px; text-align: left; }
.addr { color: #333; }
</style>
</head>
<body>
{{range .Slips}}<div class="slip">
<h2>Order {{.Order.OrderNumber}}</h2>
<div class="addr">{{.Order.CustomerName}} · {{.Order.Phone}}<br>{{.Order.Address}}, {{.Order.City}}</div>
<table>
<tr><th>SKU</th><th>Product</th><th>Qty</th></tr>
{{range .Items}}<tr><td>{{.SKU}}</td><td>{{.ProductName}}</td><td>{{.Qty}}</td></tr>
{{end}}</table>
</div>
{{end}}</body>
</html>
`))

// RenderPackingSlips renders one slip per order, each on its own print page.
func RenderPackingSlips(batch *core.Batch, orders []core.Order, items []core.BatchSnapshotItem) ([]byte, error) {
	var buf bytes.Buffer
	err := packingSlipsTmpl.Execute(&buf, struct {
		Batch *core.Batch
		Slips []SlipOrder
	}{batch, BuildSlipOrders(orders, items)})
	if err != nil {
		return nil, fmt.Errorf("failed to render packing slips: %w", err)
	}
	return buf.Bytes(), nil
}
