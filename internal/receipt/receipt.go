// Package receipt lays out confirmed documents for 58 mm thermal paper and
// encodes the layout as plain text, ESC/POS bytes or printable HTML.
package receipt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
)

const (
	Width58mm = 32
	Width80mm = 48

	placeholder = "-"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

type LineKind int

const (
	KindText LineKind = iota
	KindRule
	KindPair
	KindColumns
	KindBlank
)

// Line is one printed row. Pair lines use Left/Right; column lines use Cells
// with the layout's column widths.
type Line struct {
	Kind  LineKind
	Align Align
	Bold  bool
	Large bool
	Text  string
	Left  string
	Right string
	Cells []string
}

type Column struct {
	Title string
	Width int
	Align Align
}

type Layout struct {
	Width   int
	Columns []Column
	Lines   []Line
	Number  string
	Variant domain.Variant
}

type Business struct {
	Name    string
	Address string
	Phone   string
	Footer  string
}

func DefaultBusiness() Business {
	return Business{
		Name:    "AGS MOBILES & ACCESSORIES",
		Address: "Punnaiyakonam, Oorambu",
		Phone:   "9876543210",
		Footer:  "Thank you! Visit Again",
	}
}

// Columns of the item table for a given paper width. Each width after the
// first includes the one-space gap before the cell.
func itemColumns(width int) []Column {
	qty, rate, amt := 4, 9, 10
	if width >= Width80mm {
		qty, rate, amt = 5, 11, 12
	}
	return []Column{
		{Title: "Item", Width: width - qty - rate - amt, Align: AlignLeft},
		{Title: "Qty", Width: qty, Align: AlignRight},
		{Title: "Rate", Width: rate, Align: AlignRight},
		{Title: "Amt", Width: amt, Align: AlignRight},
	}
}

func title(v domain.Variant) string {
	switch v {
	case domain.VariantProforma:
		return "PROFORMA INVOICE"
	case domain.VariantService:
		return "SERVICE INVOICE"
	default:
		return "TAX INVOICE"
	}
}

// Render builds the receipt layout. It has no side effects.
func Render(doc domain.ConfirmedDocument, biz Business, width int) Layout {
	if width <= 0 {
		width = Width58mm
	}
	l := Layout{Width: width, Columns: itemColumns(width), Number: doc.DocumentNumber, Variant: doc.Variant}
	add := func(line Line) { l.Lines = append(l.Lines, line) }
	pair := func(left, right string) { add(Line{Kind: KindPair, Left: left, Right: right}) }

	add(Line{Kind: KindText, Align: AlignCenter, Bold: true, Large: true, Text: orDash(biz.Name)})
	if biz.Address != "" {
		add(Line{Kind: KindText, Align: AlignCenter, Text: biz.Address})
	}
	if biz.Phone != "" {
		add(Line{Kind: KindText, Align: AlignCenter, Text: "Ph: " + biz.Phone})
	}
	add(Line{Kind: KindRule})
	add(Line{Kind: KindText, Align: AlignCenter, Bold: true, Text: title(doc.Variant)})

	pair("No:", orDash(doc.DocumentNumber))
	date := placeholder
	if !doc.CreatedAt.IsZero() {
		date = doc.CreatedAt.Format("02/01/2006 15:04")
	}
	pair("Date:", date)
	pair("Customer:", orDash(doc.Customer.Name))
	pair("Phone:", orDash(doc.Customer.Phone))
	if doc.Variant == domain.VariantProforma {
		validUntil := placeholder
		if doc.Customer.ValidUntil != nil {
			validUntil = doc.Customer.ValidUntil.Format("02/01/2006")
		}
		pair("Valid till:", validUntil)
	}
	add(Line{Kind: KindRule})

	if doc.Variant == domain.VariantService && doc.Service != nil {
		pair("Service:", orDash(doc.Service.Type))
		pair("Issue:", orDash(doc.Service.Description))
		pair("Charge:", money(doc.Service.Price))
	} else {
		titles := make([]string, len(l.Columns))
		for i, c := range l.Columns {
			titles[i] = c.Title
		}
		add(Line{Kind: KindColumns, Bold: true, Cells: titles})
		nameWidth := l.Columns[0].Width
		for _, item := range doc.Items {
			name := orDash(item.ProductName)
			cells := []string{name, fmt.Sprintf("%d", item.Quantity), money(item.UnitPrice), money(item.LineTotal())}
			if utf8.RuneCountInString(name) > nameWidth-1 {
				add(Line{Kind: KindText, Text: name})
				cells[0] = ""
			}
			add(Line{Kind: KindColumns, Cells: cells})
		}
		if len(doc.Items) == 0 {
			add(Line{Kind: KindText, Align: AlignCenter, Text: "(no items)"})
		}
	}
	add(Line{Kind: KindRule})

	t := doc.Totals
	pair("Subtotal", money(t.Subtotal))
	if !t.Discount.IsZero() {
		pair("Discount", "-"+money(t.Discount))
	}
	if !t.TaxRate.IsZero() {
		pair("GST "+t.TaxRate.Mul(decimal.NewFromInt(100)).String()+"%", money(t.Tax))
	}
	if !t.Shipping.IsZero() {
		pair("Shipping", money(t.Shipping))
	}
	if !t.Insurance.IsZero() {
		pair("Insurance", money(t.Insurance))
	}
	add(Line{Kind: KindPair, Bold: true, Left: "TOTAL", Right: money(t.GrandTotal)})
	add(Line{Kind: KindRule})

	if biz.Footer != "" {
		add(Line{Kind: KindText, Align: AlignCenter, Text: biz.Footer})
	}
	add(Line{Kind: KindBlank})
	return l
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
