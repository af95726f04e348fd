// Package session is the cart lifecycle for one open document. Each command
// returns a Result; the UI never touches cart state directly.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"billdesk/terminal/internal/cart"
	"billdesk/terminal/internal/catalog"
	"billdesk/terminal/internal/document"
	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/totals"
	"billdesk/terminal/internal/xid"
)

// Saver persists a document on the billing server.
type Saver interface {
	Create(ctx context.Context, payload document.Payload) (domain.Confirmation, error)
}

// Products gives read access to the current catalog snapshot.
type Products interface {
	Current() *catalog.Snapshot
}

type Config struct {
	Variant     domain.Variant
	Products    Products
	Saver       Saver
	Builder     *document.Builder
	Logger      *slog.Logger
	SaveTimeout time.Duration
	// OnConfirmed runs after a successful save, outside the session lock.
	OnConfirmed func(ctx context.Context, doc domain.ConfirmedDocument)
}

type Session struct {
	id          string
	variant     domain.Variant
	products    Products
	saver       Saver
	builder     *document.Builder
	logger      *slog.Logger
	saveTimeout time.Duration
	onConfirmed func(ctx context.Context, doc domain.ConfirmedDocument)

	mu          sync.Mutex
	state       State
	items       *cart.Collection
	customer    domain.Customer
	service     *domain.ServiceCharge
	charges     domain.Charges
	placeholder string
	pending     *domain.Draft
	confirmed   *domain.ConfirmedDocument
	lastErr     error
	createdAt   time.Time
	touchedAt   time.Time

	saves singleflight.Group
}

func New(cfg Config) *Session {
	if cfg.Builder == nil {
		cfg.Builder = document.NewBuilder()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 30 * time.Second
	}
	now := time.Now()
	s := &Session{
		id:          xid.New("ses"),
		variant:     cfg.Variant,
		products:    cfg.Products,
		saver:       cfg.Saver,
		builder:     cfg.Builder,
		logger:      cfg.Logger,
		saveTimeout: cfg.SaveTimeout,
		onConfirmed: cfg.OnConfirmed,
		state:       StateEmpty,
		items:       cart.New(),
		placeholder: document.Placeholder(cfg.Variant, now),
		createdAt:   now,
		touchedAt:   now,
	}
	s.logger = s.logger.With("session", s.id, "variant", string(s.variant))
	return s
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Variant() domain.Variant { return s.variant }

// TouchedAt is the time of the last command, used to expire idle sessions.
func (s *Session) TouchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

func (s *Session) View() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

// AddItemInput is raw operator input. UnitPrice is only honoured for
// proforma documents, where the price may be negotiated.
type AddItemInput struct {
	ProductID int64  `json:"product_id"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price,omitempty"`
}

func (s *Session) HandleAddItem(in AddItemInput) Result {
	return s.mutate(func() ([]domain.Notice, error) {
		if s.variant == domain.VariantService {
			return nil, domain.Detail(domain.ErrWrongVariant, "service records do not take line items")
		}
		qty, err := cart.ParseQuantity(in.Quantity)
		if err != nil {
			return nil, err
		}
		product, err := s.products.Current().Lookup(in.ProductID)
		if err != nil {
			return nil, err
		}

		price := product.SellingPrice
		if s.variant == domain.VariantProforma && strings.TrimSpace(in.UnitPrice) != "" {
			if price, err = cart.ParsePrice(in.UnitPrice); err != nil {
				return nil, err
			}
		}
		if _, err := s.items.AddAtPrice(product, qty, price); err != nil {
			return nil, err
		}
		if n := catalog.LowStockNotice(product); n != nil {
			return []domain.Notice{*n}, nil
		}
		return nil, nil
	})
}

func (s *Session) HandleRemoveItem(index int) Result {
	return s.mutate(func() ([]domain.Notice, error) {
		_, err := s.items.Remove(index)
		return nil, err
	})
}

func (s *Session) HandleClear() Result {
	return s.mutate(func() ([]domain.Notice, error) {
		s.items.Clear()
		s.service = nil
		s.charges = domain.Charges{}
		return nil, nil
	})
}

func (s *Session) SetCustomer(c domain.Customer) Result {
	return s.mutate(func() ([]domain.Notice, error) {
		s.customer = c
		return nil, nil
	})
}

// SetService sets the single charge of a service record.
func (s *Session) SetService(svc domain.ServiceCharge) Result {
	return s.mutate(func() ([]domain.Notice, error) {
		if s.variant != domain.VariantService {
			return nil, domain.Detail(domain.ErrWrongVariant, "only service records carry a service charge")
		}
		if svc.Price.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		s.service = &svc
		return nil, nil
	})
}

// ChargesInput is raw operator input for proforma extras; blanks mean zero.
type ChargesInput struct {
	Discount  string `json:"discount"`
	Shipping  string `json:"shipping"`
	Insurance string `json:"insurance"`
}

func (s *Session) SetCharges(in ChargesInput) Result {
	return s.mutate(func() ([]domain.Notice, error) {
		if s.variant != domain.VariantProforma {
			return nil, domain.Detail(domain.ErrWrongVariant, "only proforma invoices take discount, shipping or insurance")
		}
		var charges domain.Charges
		var err error
		if charges.Discount, err = cart.ParseCharge("discount", in.Discount); err != nil {
			return nil, err
		}
		if charges.Shipping, err = cart.ParseCharge("shipping", in.Shipping); err != nil {
			return nil, err
		}
		if charges.Insurance, err = cart.ParseCharge("insurance", in.Insurance); err != nil {
			return nil, err
		}
		s.charges = charges
		return nil, nil
	})
}

// mutate runs fn under the lock unless a save is in flight or a confirmed
// document awaits acknowledgement. fn must leave state untouched on error.
func (s *Session) mutate(fn func() ([]domain.Notice, error)) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	switch s.state {
	case StateSaving:
		return s.failLocked(domain.ErrSaveInProgress)
	case StateConfirmed:
		return s.failLocked(domain.ErrAwaitingAck)
	}

	notices, err := fn()
	if err != nil {
		return s.failLocked(err)
	}
	s.lastErr = nil
	s.state = s.contentStateLocked()
	res := s.resultLocked()
	res.Notices = append(res.Notices, notices...)
	return res
}

func (s *Session) failLocked(err error) Result {
	res := s.resultLocked()
	res.setError(err)
	return res
}

func (s *Session) contentStateLocked() State {
	if s.items.Len() > 0 || s.service != nil || strings.TrimSpace(s.customer.Name) != "" {
		return StateBuilding
	}
	return StateEmpty
}

// Save builds the draft and sends it. Concurrent calls share one request;
// while it runs, mutations are rejected. On failure the cart is kept and the
// session moves to failed; a retry is always operator-initiated.
func (s *Session) Save(ctx context.Context) Result {
	s.mu.Lock()
	s.touchedAt = time.Now()
	switch s.state {
	case StateConfirmed:
		res := s.resultLocked()
		s.mu.Unlock()
		return res
	case StateSaving:
	default:
		draft, err := s.builder.BuildDraft(document.Input{
			Variant:     s.variant,
			Items:       s.items.Items(),
			Customer:    s.customer,
			Service:     s.service,
			Charges:     s.charges,
			Placeholder: s.placeholder,
		})
		if err != nil {
			res := s.failLocked(err)
			s.mu.Unlock()
			return res
		}
		s.pending = &draft
		s.state = StateSaving
	}
	s.mu.Unlock()

	ch := s.saves.DoChan("save", func() (any, error) {
		return nil, s.persist(ctx)
	})
	select {
	case <-ctx.Done():
		res := s.View()
		res.setError(ctx.Err())
		return res
	case out := <-ch:
		res := s.View()
		if out.Err != nil {
			res.setError(out.Err)
		}
		return res
	}
}

// persist runs once per in-flight save. It detaches from the caller's
// cancellation so a joined caller giving up does not abort the others.
func (s *Session) persist(callerCtx context.Context) error {
	s.mu.Lock()
	if s.state != StateSaving || s.pending == nil {
		s.mu.Unlock()
		return nil
	}
	draft := *s.pending
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(callerCtx), s.saveTimeout)
	defer cancel()

	doc, err := s.send(ctx, draft)

	s.mu.Lock()
	s.pending = nil
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Warn("document save failed", "placeholder", draft.PlaceholderNumber, "kind", domain.KindOf(err), "error", err)
		return err
	}
	s.state = StateConfirmed
	s.confirmed = &doc
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("document confirmed", "number", doc.DocumentNumber, "grand_total", doc.Totals.GrandTotal.StringFixed(2))
	if s.onConfirmed != nil {
		s.onConfirmed(ctx, doc)
	}
	return nil
}

func (s *Session) send(ctx context.Context, draft domain.Draft) (domain.ConfirmedDocument, error) {
	payload, err := document.ToPersistencePayload(draft)
	if err != nil {
		return domain.ConfirmedDocument{}, err
	}
	conf, err := s.saver.Create(ctx, payload)
	if err != nil {
		return domain.ConfirmedDocument{}, err
	}
	return document.FromConfirmation(conf, draft)
}

// Acknowledge is called once the confirmed document has been shown or
// printed. It clears the cart and starts a fresh draft number. The returned
// Result carries the acknowledged document.
func (s *Session) Acknowledge() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()

	if s.state != StateConfirmed || s.confirmed == nil {
		return s.failLocked(domain.ErrNotConfirmed)
	}
	doc := s.confirmed
	s.items.Clear()
	s.customer = domain.Customer{}
	s.service = nil
	s.charges = domain.Charges{}
	s.confirmed = nil
	s.lastErr = nil
	s.placeholder = document.Placeholder(s.variant, time.Now())
	s.state = StateEmpty

	res := s.resultLocked()
	res.Confirmed = doc
	return res
}

// Confirmed returns the document awaiting acknowledgement, if any.
func (s *Session) Confirmed() (domain.ConfirmedDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed == nil {
		return domain.ConfirmedDocument{}, false
	}
	return *s.confirmed, true
}

// Totals are recomputed on every read.
func (s *Session) totalsLocked() domain.Totals {
	cfg := totals.ConfigFor(s.variant, s.charges)
	if s.variant == domain.VariantService {
		price := decimal.Zero
		if s.service != nil {
			price = s.service.Price
		}
		return totals.ComputeAmount(price, cfg)
	}
	return totals.Compute(s.items.Items(), cfg)
}

func (s *Session) resultLocked() Result {
	res := Result{
		SessionID:   s.id,
		Variant:     s.variant,
		State:       s.state,
		Placeholder: s.placeholder,
		Items:       s.items.Items(),
		Customer:    s.customer,
		Charges:     s.charges,
		Totals:      s.totalsLocked().Rounded(),
	}
	if s.service != nil {
		svc := *s.service
		res.Service = &svc
	}
	if s.confirmed != nil {
		doc := *s.confirmed
		res.Confirmed = &doc
		res.Totals = doc.Totals
	}
	if s.state == StateFailed && s.lastErr != nil {
		res.setError(s.lastErr)
	}
	return res
}

func asDomainError(err error) (*domain.Error, bool) {
	var de *domain.Error
	ok := errors.As(err, &de)
	return de, ok
}
