package listing

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billdesk/terminal/internal/domain"
)

func summaries(n int) []domain.DocumentSummary {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	out := make([]domain.DocumentSummary, n)
	for i := range out {
		out[i] = domain.DocumentSummary{
			Variant:      domain.VariantInvoice,
			Number:       fmt.Sprintf("INV-%03d", i+1),
			CustomerName: fmt.Sprintf("Customer %d", i+1),
			GrandTotal:   decimal.NewFromInt(int64(100 * (i + 1))),
			CreatedAt:    base.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return out
}

func TestFilterByCustomerAndDate(t *testing.T) {
	docs := summaries(12)
	docs[3].CustomerName = "Ravi Kumar"

	got := Apply(docs, Filter{Customer: "ravi"})
	require.Len(t, got, 1)
	require.Equal(t, "INV-004", got[0].Number)

	got = Apply(docs, Filter{Date: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), Location: time.UTC})
	require.Len(t, got, 1)
	require.Equal(t, "INV-005", got[0].Number)

	ist := time.FixedZone("IST", 5*3600+1800)
	late := domain.DocumentSummary{CreatedAt: time.Date(2024, 6, 5, 20, 0, 0, 0, time.UTC)}
	require.True(t, Filter{Date: time.Date(2024, 6, 6, 0, 0, 0, 0, ist), Location: ist}.Match(late))

	require.Empty(t, Apply(docs, Filter{Variant: domain.VariantService}))
}

func TestPaginate(t *testing.T) {
	docs := summaries(23)

	p := Paginate(docs, 1, 0)
	require.Len(t, p.Items, 10)
	require.Equal(t, 3, p.TotalPages)
	require.False(t, p.HasPrev)
	require.True(t, p.HasNext)
	require.Equal(t, "Page 1 of 3", p.Info())

	p = Paginate(docs, 3, 10)
	require.Len(t, p.Items, 3)
	require.False(t, p.HasNext)

	p = Paginate(docs, 9, 10)
	require.Equal(t, 3, p.Page)

	p = Paginate(nil, 1, 10)
	require.Empty(t, p.Items)
	require.Equal(t, "Page 1 of 1", p.Info())
}

func TestSortNewestFirst(t *testing.T) {
	docs := summaries(3)
	SortNewestFirst(docs)
	require.Equal(t, "INV-003", docs[0].Number)
}

func TestWriteCSV(t *testing.T) {
	docs := summaries(2)
	docs[0].CustomerName = `Anu, "A"`
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, docs, time.UTC))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Type,Number,Date,Customer,Phone,Grand Total", lines[0])
	require.Equal(t, `invoice,INV-001,2024-06-01 10:00,"Anu, ""A""",,100.00`, lines[1])
}

func TestFormatReportGroupsDigits(t *testing.T) {
	lines := FormatReport(domain.Report{
		TotalSales:   decimal.RequireFromString("1234567.5"),
		TotalRevenue: decimal.RequireFromString("99.999"),
	}, "en", "₹")
	require.Equal(t, "Total sales", lines[0].Label)
	require.Equal(t, "₹1,234,567.50", lines[0].Value)
	require.Equal(t, "₹100.00", lines[4].Value)
}
