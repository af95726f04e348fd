package service

import (
	"context"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"billdesk/terminal/internal/document"
	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/listing"
	"billdesk/terminal/internal/printer"
	"billdesk/terminal/internal/receipt"
	"billdesk/terminal/internal/store"
)

// Summaries fetches saved documents from the billing server. An empty
// variant fetches all three lists concurrently.
func (s *Service) Summaries(ctx context.Context, variant domain.Variant) ([]domain.DocumentSummary, error) {
	want := func(v domain.Variant) bool { return variant == "" || variant == v }

	var bills, proformas, services []domain.DocumentSummary
	g, gctx := errgroup.WithContext(ctx)
	if want(domain.VariantInvoice) {
		g.Go(func() error {
			recs, err := s.api.ListBills(gctx)
			for _, rec := range recs {
				bills = append(bills, document.SummaryOfInvoice(rec))
			}
			return err
		})
	}
	if want(domain.VariantProforma) {
		g.Go(func() error {
			recs, err := s.api.ListProforma(gctx)
			for _, rec := range recs {
				proformas = append(proformas, document.SummaryOfProforma(rec))
			}
			return err
		})
	}
	if want(domain.VariantService) {
		g.Go(func() error {
			recs, err := s.api.ListServices(gctx)
			for _, rec := range recs {
				services = append(services, document.SummaryOfService(rec))
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.DocumentSummary, 0, len(bills)+len(proformas)+len(services))
	out = append(out, bills...)
	out = append(out, proformas...)
	out = append(out, services...)
	return out, nil
}

// ListDocuments returns one page of filtered documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, f listing.Filter, page, perPage int) (listing.Page, error) {
	docs, err := s.filtered(ctx, f)
	if err != nil {
		return listing.Page{}, err
	}
	return listing.Paginate(docs, page, perPage), nil
}

// ExportDocuments writes every document matching f as CSV.
func (s *Service) ExportDocuments(ctx context.Context, w io.Writer, f listing.Filter) error {
	docs, err := s.filtered(ctx, f)
	if err != nil {
		return err
	}
	return listing.WriteCSV(w, docs, s.loc)
}

func (s *Service) filtered(ctx context.Context, f listing.Filter) ([]domain.DocumentSummary, error) {
	if f.Location == nil {
		f.Location = s.loc
	}
	docs, err := s.Summaries(ctx, f.Variant)
	if err != nil {
		return nil, err
	}
	docs = listing.Apply(docs, f)
	listing.SortNewestFirst(docs)
	return docs, nil
}

// FindDocument looks in the local journal first, then in the server lists.
func (s *Service) FindDocument(ctx context.Context, variant domain.Variant, number string) (domain.ConfirmedDocument, error) {
	doc, err := s.journal.FindDocument(ctx, variant, number)
	switch {
	case err == nil:
		return *doc, nil
	case errors.Is(err, store.ErrNotFound):
	default:
		s.logger.Warn("journal lookup failed", "number", number, "error", err)
	}

	switch variant {
	case domain.VariantInvoice:
		recs, err := s.api.ListBills(ctx)
		if err != nil {
			return domain.ConfirmedDocument{}, err
		}
		for _, rec := range recs {
			if rec.InvoiceNo == number {
				return document.FromInvoiceRecord(rec), nil
			}
		}
	case domain.VariantProforma:
		recs, err := s.api.ListProforma(ctx)
		if err != nil {
			return domain.ConfirmedDocument{}, err
		}
		for _, rec := range recs {
			if rec.ProformaNo == number {
				return document.FromProformaRecord(rec), nil
			}
		}
	case domain.VariantService:
		recs, err := s.api.ListServices(ctx)
		if err != nil {
			return domain.ConfirmedDocument{}, err
		}
		for _, rec := range recs {
			if rec.Number() == number {
				return document.FromServiceRecord(rec), nil
			}
		}
	default:
		return domain.ConfirmedDocument{}, domain.ErrInvalidVariant
	}
	return domain.ConfirmedDocument{}, domain.Detail(domain.ErrDocumentNotFound, "document %s not found", number)
}

func (s *Service) Receipt(ctx context.Context, variant domain.Variant, number string) (receipt.Layout, error) {
	doc, err := s.FindDocument(ctx, variant, number)
	if err != nil {
		return receipt.Layout{}, err
	}
	return s.Render(doc), nil
}

// PrintReceipt reprints a saved document.
func (s *Service) PrintReceipt(ctx context.Context, variant domain.Variant, number string) (string, error) {
	doc, err := s.FindDocument(ctx, variant, number)
	if err != nil {
		return "", err
	}
	return s.printDocument(ctx, doc)
}

// OpenCashDrawer sends the drawer pulse through the print spooler and also
// returns it for clients that drive the printer themselves.
func (s *Service) OpenCashDrawer(ctx context.Context) (domain.CashDrawerCommand, error) {
	cmd := domain.CashDrawerCommand{
		CommandBase64: base64.StdEncoding.EncodeToString(receipt.CashDrawerPulse),
		Note:          "ESC/POS drawer pulse on pin 2",
	}
	if _, err := s.spooler.Submit(ctx, printer.Job{Data: receipt.CashDrawerPulse}); err != nil {
		s.metrics.ObservePrint("failed")
		return cmd, err
	}
	s.metrics.ObservePrint("submitted")
	return cmd, nil
}

// ReportView is the raw report plus its display lines.
type ReportView struct {
	Report domain.Report         `json:"report"`
	Lines  []listing.ReportLine `json:"lines"`
}

func (s *Service) Reports(ctx context.Context, rng domain.ReportRange) (ReportView, error) {
	r, err := s.api.Reports(ctx, rng)
	if err != nil {
		return ReportView{}, err
	}
	return ReportView{Report: r, Lines: listing.FormatReport(r, s.locale, s.currency)}, nil
}

// DeleteService removes a service record. Callers must have checked the
// manager PIN.
func (s *Service) DeleteService(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.Detail(domain.ErrDocumentNotFound, "service %d not found", id)
	}
	if err := s.api.DeleteService(ctx, id); err != nil {
		return err
	}
	actor, _ := ActorFromContext(ctx)
	s.logger.Info("service record deleted", "id", id, "operator", actor.Username)
	return nil
}
