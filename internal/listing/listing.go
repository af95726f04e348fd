// Package listing filters, pages and exports saved documents fetched from
// the billing server.
package listing

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"billdesk/terminal/internal/domain"
)

const DefaultPerPage = 10

type Filter struct {
	Variant  domain.Variant
	Customer string
	// Date, when set, keeps documents created on that calendar day in Location.
	Date     time.Time
	Location *time.Location
}

func (f Filter) Match(doc domain.DocumentSummary) bool {
	if f.Variant != "" && doc.Variant != f.Variant {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Customer)); term != "" {
		if !strings.Contains(strings.ToLower(doc.CustomerName), term) {
			return false
		}
	}
	if !f.Date.IsZero() {
		loc := f.Location
		if loc == nil {
			loc = time.Local
		}
		y1, m1, d1 := doc.CreatedAt.In(loc).Date()
		y2, m2, d2 := f.Date.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			return false
		}
	}
	return true
}

func Apply(docs []domain.DocumentSummary, f Filter) []domain.DocumentSummary {
	out := make([]domain.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		if f.Match(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// SortNewestFirst orders by creation time, newest first, keeping ties stable.
func SortNewestFirst(docs []domain.DocumentSummary) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

type Page struct {
	Items      []domain.DocumentSummary `json:"items"`
	Page       int                      `json:"page"`
	PerPage    int                      `json:"per_page"`
	Total      int                      `json:"total"`
	TotalPages int                      `json:"total_pages"`
	HasPrev    bool                     `json:"has_prev"`
	HasNext    bool                     `json:"has_next"`
}

// Info is the "Page 2 of 5" label.
func (p Page) Info() string {
	return "Page " + strconv.Itoa(p.Page) + " of " + strconv.Itoa(max(p.TotalPages, 1))
}

// Paginate returns the 1-based page. Out-of-range pages are clamped.
func Paginate(docs []domain.DocumentSummary, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(docs)
	totalPages := (total + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	items := []domain.DocumentSummary{}
	if start < total {
		items = append(items, docs[start:end]...)
	}
	return Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}

// WriteCSV exports document summaries with amounts to two decimals.
func WriteCSV(w io.Writer, docs []domain.DocumentSummary, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Type", "Number", "Date", "Customer", "Phone", "Grand Total"}); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := writer.Write([]string{
			string(doc.Variant),
			doc.Number,
			doc.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			doc.CustomerName,
			doc.CustomerPhone,
			doc.GrandTotal.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
