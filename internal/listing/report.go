package listing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"billdesk/terminal/internal/domain"
)

// ReportLine is one labelled, locale-formatted figure.
type ReportLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FormatReport renders the sales summary with currency and digit grouping
// for the given locale (Indian grouping for "en-IN").
func FormatReport(r domain.Report, locale string, currency string) []ReportLine {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	format := func(d decimal.Decimal) string {
		f, _ := d.Round(2).Float64()
		return currency + p.Sprintf("%.2f", f)
	}
	return []ReportLine{
		{Label: "Total sales", Value: format(r.TotalSales)},
		{Label: "Service income", Value: format(r.ServiceIncome)},
		{Label: "Today", Value: format(r.DailySales)},
		{Label: "This month", Value: format(r.MonthlySales)},
		{Label: "Total revenue", Value: format(r.TotalRevenue)},
	}
}
