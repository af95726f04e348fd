// Package service wires the cart core to the billing server, the local
// journal, the printer and metrics. HTTP handlers and the CLI call it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"billdesk/terminal/internal/cache"
	"billdesk/terminal/internal/catalog"
	"billdesk/terminal/internal/document"
	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/observability"
	"billdesk/terminal/internal/printer"
	"billdesk/terminal/internal/receipt"
	"billdesk/terminal/internal/session"
	"billdesk/terminal/internal/store"
	"billdesk/terminal/internal/store/memory"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// BillingAPI is the subset of the billing server client the terminal uses.
type BillingAPI interface {
	catalog.Loader
	session.Saver
	ListBills(ctx context.Context) ([]domain.InvoiceRecord, error)
	ListProforma(ctx context.Context) ([]domain.ProformaRecord, error)
	ListServices(ctx context.Context) ([]domain.ServiceRecord, error)
	DeleteService(ctx context.Context, id int64) error
	Reports(ctx context.Context, rng domain.ReportRange) (domain.Report, error)
}

type Options struct {
	CatalogCache   cache.CatalogCache
	CatalogTTL     time.Duration
	Journal        store.Journal
	Spooler        printer.Spooler
	Metrics        *observability.Metrics
	Logger         *slog.Logger
	Business       receipt.Business
	PaperWidth     int
	Location       *time.Location
	Locale         string
	Currency       string
	SaveTimeout    time.Duration
	SuggestDelay   time.Duration
	SessionIdleTTL time.Duration
}

type openSession struct {
	sess      *session.Session
	suggester *session.Suggester
	owner     domain.Actor
}

// authorize checks the caller against the session. Proforma sessions stay
// admin-only after opening, and a session opened by an operator is only
// usable by that operator or an admin.
func (e *openSession) authorize(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if e.sess.Variant() == domain.VariantProforma && (!ok || actor.Role != domain.RoleAdmin) {
		return domain.Detail(domain.ErrForbidden, "proforma invoices need an admin operator")
	}
	if e.owner.Username == "" {
		return nil
	}
	if ok && (actor.Role == domain.RoleAdmin || actor.Username == e.owner.Username) {
		return nil
	}
	return domain.Detail(domain.ErrForbidden, "session belongs to another operator")
}

type Service struct {
	api      BillingAPI
	catalog  *catalog.Catalog
	journal  store.Journal
	spooler  printer.Spooler
	metrics  *observability.Metrics
	logger   *slog.Logger
	builder  *document.Builder
	business receipt.Business
	width    int
	loc      *time.Location
	locale   string
	currency string
	saveTO   time.Duration
	delay    time.Duration
	idleTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*openSession
}

func New(api BillingAPI, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Journal == nil {
		opts.Journal = memory.New()
	}
	if opts.Spooler == nil {
		opts.Spooler = printer.NewDirectSpooler(printer.NewNullPrinter())
	}
	if opts.Business.Name == "" {
		opts.Business = receipt.DefaultBusiness()
	}
	if opts.PaperWidth <= 0 {
		opts.PaperWidth = receipt.Width58mm
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Locale == "" {
		opts.Locale = "en-IN"
	}
	if opts.Currency == "" {
		opts.Currency = "₹"
	}
	if opts.SessionIdleTTL <= 0 {
		opts.SessionIdleTTL = 12 * time.Hour
	}

	return &Service{
		api: api,
		catalog: catalog.New(api, catalog.Options{
			Cache:    opts.CatalogCache,
			CacheTTL: opts.CatalogTTL,
			Logger:   opts.Logger,
		}),
		journal:  opts.Journal,
		spooler:  opts.Spooler,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		builder:  document.NewBuilder(),
		business: opts.Business,
		width:    opts.PaperWidth,
		loc:      opts.Location,
		locale:   opts.Locale,
		currency: opts.Currency,
		saveTO:   opts.SaveTimeout,
		delay:    opts.SuggestDelay,
		idleTTL:  opts.SessionIdleTTL,
		sessions: map[string]*openSession{},
	}
}

// CatalogStatus describes the active snapshot.
type CatalogStatus struct {
	Products  int            `json:"products"`
	Source    catalog.Source `json:"source"`
	Stale     bool           `json:"stale"`
	FetchedAt time.Time      `json:"fetched_at"`
	Notice    *domain.Notice `json:"notice,omitempty"`
}

func (s *Service) LoadCatalog(ctx context.Context) CatalogStatus {
	return s.catalogStatus(s.catalog.Load(ctx))
}

func (s *Service) RefreshCatalog(ctx context.Context) CatalogStatus {
	return s.catalogStatus(s.catalog.Refresh(ctx))
}

func (s *Service) catalogStatus(snap *catalog.Snapshot, notice *domain.Notice) CatalogStatus {
	s.metrics.ObserveCatalog(string(snap.Source()), snap.Len(), notice != nil)
	return CatalogStatus{
		Products:  snap.Len(),
		Source:    snap.Source(),
		Stale:     snap.Stale(),
		FetchedAt: snap.FetchedAt(),
		Notice:    notice,
	}
}

// SearchProducts is the undebounced search used by the CLI.
func (s *Service) SearchProducts(ctx context.Context, term string) ([]domain.Product, *domain.Notice) {
	snap, notice := s.catalog.Load(ctx)
	return snap.Search(term), notice
}

// OpenSession starts a new cart. Proforma invoices are limited to admins.
func (s *Service) OpenSession(ctx context.Context, variant domain.Variant) (session.Result, error) {
	if variant == domain.VariantProforma {
		if actor, ok := ActorFromContext(ctx); !ok || actor.Role != domain.RoleAdmin {
			return session.Result{}, domain.Detail(domain.ErrForbidden, "proforma invoices need an admin operator")
		}
	}
	if _, ok := domain.ParseVariant(string(variant)); !ok {
		return session.Result{}, domain.ErrInvalidVariant
	}

	status := s.LoadCatalog(ctx)
	sess := session.New(session.Config{
		Variant:     variant,
		Products:    s.catalog,
		Saver:       s.api,
		Builder:     s.builder,
		Logger:      s.logger,
		SaveTimeout: s.saveTO,
		OnConfirmed: s.recordConfirmed,
	})
	snapshot := s.catalog
	owner, _ := ActorFromContext(ctx)
	entry := &openSession{
		sess:  sess,
		owner: owner,
		suggester: session.NewSuggester(func(q string) []domain.Product {
			return snapshot.Current().Search(q)
		}, s.delay, nil),
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = entry
	s.mu.Unlock()

	res := sess.View()
	if status.Notice != nil {
		res.Notices = append(res.Notices, *status.Notice)
	}
	return res, nil
}

func (s *Service) lookup(ctx context.Context, id string) (*openSession, error) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := entry.authorize(ctx); err != nil {
		s.metrics.ObserveRejection(string(domain.KindOf(err)))
		return nil, err
	}
	return entry, nil
}

func (s *Service) CloseSession(ctx context.Context, id string) error {
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	entry.suggester.Stop()
	return nil
}

// ExpireIdleSessions drops sessions untouched for longer than the idle TTL
// and not in the middle of a save.
func (s *Service) ExpireIdleSessions(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for id, entry := range s.sessions {
		if now.Sub(entry.sess.TouchedAt()) < s.idleTTL {
			continue
		}
		if entry.sess.View().State == session.StateSaving {
			continue
		}
		entry.suggester.Stop()
		delete(s.sessions, id)
		expired++
	}
	if expired > 0 {
		s.logger.Info("expired idle sessions", "count", expired)
	}
	return expired
}

func (s *Service) withSession(ctx context.Context, id string, fn func(*session.Session) session.Result) (session.Result, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return session.Result{}, err
	}
	res := fn(entry.sess)
	if res.Err != nil {
		s.metrics.ObserveRejection(string(domain.KindOf(res.Err)))
	}
	return res, nil
}

func (s *Service) ViewSession(ctx context.Context, id string) (session.Result, error) {
	return s.withSession(ctx, id, (*session.Session).View)
}

func (s *Service) AddItem(ctx context.Context, id string, in session.AddItemInput) (session.Result, error) {
	return s.withSession(ctx, id, func(sess *session.Session) session.Result { return sess.HandleAddItem(in) })
}

func (s *Service) RemoveItem(ctx context.Context, id string, index int) (session.Result, error) {
	return s.withSession(ctx, id, func(sess *session.Session) session.Result { return sess.HandleRemoveItem(index) })
}

func (s *Service) ClearSession(ctx context.Context, id string) (session.Result, error) {
	return s.withSession(ctx, id, (*session.Session).HandleClear)
}

func (s *Service) SetCustomer(ctx context.Context, id string, c domain.Customer) (session.Result, error) {
	return s.withSession(ctx, id, func(sess *session.Session) session.Result { return sess.SetCustomer(c) })
}

func (s *Service) SetService(ctx context.Context, id string, svc domain.ServiceCharge) (session.Result, error) {
	return s.withSession(ctx, id, func(sess *session.Session) session.Result { return sess.SetService(svc) })
}

func (s *Service) SetCharges(ctx context.Context, id string, in session.ChargesInput) (session.Result, error) {
	return s.withSession(ctx, id, func(sess *session.Session) session.Result { return sess.SetCharges(in) })
}

func (s *Service) Save(ctx context.Context, id string) (session.Result, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return session.Result{}, err
	}
	res := entry.sess.Save(ctx)
	switch {
	case res.Err == nil:
	case domain.KindOf(res.Err) == domain.KindValidation:
		s.metrics.ObserveRejection(string(domain.KindValidation))
	default:
		s.metrics.ObserveSave(string(entry.sess.Variant()), "failed")
	}
	return res, nil
}

// recordConfirmed journals a confirmed document. Failures are logged only;
// the billing server already holds the record.
func (s *Service) recordConfirmed(ctx context.Context, doc domain.ConfirmedDocument) {
	s.metrics.ObserveSave(string(doc.Variant), "confirmed")
	if err := s.journal.SaveDocument(ctx, doc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Info("document already journaled", "number", doc.DocumentNumber)
			return
		}
		s.logger.Warn("journal write failed", "number", doc.DocumentNumber, "error", err)
	}
}

// AcknowledgeResult is the cleared session plus the print job, if one was
// requested.
type AcknowledgeResult struct {
	session.Result
	PrintJobID string `json:"print_job_id,omitempty"`
	PrintError string `json:"print_error,omitempty"`
}

// Acknowledge clears a confirmed session, printing the receipt first when
// asked. A print failure does not keep the cart; the receipt can be reprinted
// from the journal.
func (s *Service) Acknowledge(ctx context.Context, id string, print bool) (AcknowledgeResult, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return AcknowledgeResult{}, err
	}
	res := entry.sess.Acknowledge()
	out := AcknowledgeResult{Result: res}
	if res.Err != nil || !print || res.Confirmed == nil {
		return out, nil
	}

	jobID, err := s.printDocument(ctx, *res.Confirmed)
	if err != nil {
		out.PrintError = "receipt could not be printed; reprint it from the documents list"
		return out, nil
	}
	out.PrintJobID = jobID
	return out, nil
}

func (s *Service) SubmitSuggestion(ctx context.Context, id string, query string) (uint64, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	return entry.suggester.Submit(query), nil
}

func (s *Service) LatestSuggestions(ctx context.Context, id string) (session.Suggestions, bool, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return session.Suggestions{}, false, err
	}
	res, pending := entry.suggester.Latest()
	return res, pending, nil
}

func (s *Service) Render(doc domain.ConfirmedDocument) receipt.Layout {
	return receipt.Render(doc, s.business, s.width)
}

func (s *Service) printDocument(ctx context.Context, doc domain.ConfirmedDocument) (string, error) {
	data := s.Render(doc).ESCPOS()
	jobID, err := s.spooler.Submit(ctx, printer.Job{DocumentNumber: doc.DocumentNumber, Data: data})
	if err != nil {
		s.metrics.ObservePrint("failed")
		s.logger.Warn("print failed", "number", doc.DocumentNumber, "error", err)
		return "", fmt.Errorf("print %s: %w", doc.DocumentNumber, err)
	}
	s.metrics.ObservePrint("submitted")
	return jobID, nil
}
