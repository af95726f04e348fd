// Package document turns a cart plus customer details into drafts, wire
// payloads for the billing server, and confirmed documents.
package document

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/totals"
	"billdesk/terminal/internal/xid"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,14}$`)

// Input is everything a draft is built from.
type Input struct {
	Variant     domain.Variant
	Items       []domain.LineItem
	Customer    domain.Customer
	Service     *domain.ServiceCharge
	Charges     domain.Charges
	Placeholder string
}

type Builder struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewBuilder() *Builder {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Builder{validate: v, now: time.Now}
}

// WithClock replaces the time source, mainly for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// BuildDraft validates input and computes totals. Nothing is sent anywhere.
func (b *Builder) BuildDraft(in Input) (domain.Draft, error) {
	customer := domain.Customer{
		Name:       strings.TrimSpace(in.Customer.Name),
		Phone:      strings.TrimSpace(in.Customer.Phone),
		ValidUntil: in.Customer.ValidUntil,
	}

	switch in.Variant {
	case domain.VariantInvoice, domain.VariantProforma:
		if len(in.Items) == 0 {
			return domain.Draft{}, domain.ErrEmptyCart
		}
		if customer.Name == "" {
			return domain.Draft{}, domain.ErrMissingCustomer
		}
	case domain.VariantService:
		if in.Service == nil || strings.TrimSpace(in.Service.Type) == "" {
			return domain.Draft{}, domain.ErrMissingServiceType
		}
		if !in.Service.Price.IsPositive() {
			return domain.Draft{}, domain.Detail(domain.ErrInvalidPrice, "service price must be a positive amount")
		}
	default:
		return domain.Draft{}, domain.ErrInvalidVariant
	}

	if in.Charges.Discount.IsNegative() || in.Charges.Shipping.IsNegative() || in.Charges.Insurance.IsNegative() {
		return domain.Draft{}, domain.ErrInvalidCharge
	}
	if err := b.validateStruct(customer); err != nil {
		return domain.Draft{}, err
	}

	draft := domain.Draft{
		Variant:           in.Variant,
		PlaceholderNumber: in.Placeholder,
		Customer:          customer,
		CreatedAt:         b.now(),
	}
	if draft.PlaceholderNumber == "" {
		draft.PlaceholderNumber = Placeholder(in.Variant, draft.CreatedAt)
	}

	cfg := totals.ConfigFor(in.Variant, in.Charges)
	if in.Variant == domain.VariantService {
		service := domain.ServiceCharge{
			Type:        strings.TrimSpace(in.Service.Type),
			Description: strings.TrimSpace(in.Service.Description),
			Price:       in.Service.Price,
		}
		if err := b.validateStruct(service); err != nil {
			return domain.Draft{}, err
		}
		draft.Service = &service
		draft.Totals = totals.ComputeAmount(service.Price, cfg)
		return draft, nil
	}

	draft.Items = append([]domain.LineItem(nil), in.Items...)
	draft.Charges = domain.Charges{Discount: cfg.Discount, Shipping: cfg.Shipping, Insurance: cfg.Insurance}
	draft.Totals = totals.Compute(draft.Items, cfg)
	return draft, nil
}

func (b *Builder) validateStruct(s any) error {
	err := b.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		msgs = append(msgs, strings.ToLower(fieldErr.Field())+" is invalid ("+fieldErr.Tag()+")")
	}
	sort.Strings(msgs)
	return domain.Detail(domain.ErrInvalidCustomer, "%s", strings.Join(msgs, "; "))
}

// Placeholder returns the display-only number shown before save.
func Placeholder(variant domain.Variant, now time.Time) string {
	switch variant {
	case domain.VariantProforma:
		return xid.Placeholder("PF", now)
	case domain.VariantService:
		return xid.PlaceholderWithSuffix("SIN", now)
	default:
		return xid.Placeholder("INV", now)
	}
}

// Payload is the request body for one create endpoint. Exactly one of the
// variant fields is set.
type Payload struct {
	Variant  domain.Variant
	Bill     *domain.BillPayload
	Proforma *domain.ProformaPayload
	Service  *domain.ServicePayload
}

// Body returns the value to JSON-encode.
func (p Payload) Body() any {
	switch {
	case p.Bill != nil:
		return p.Bill
	case p.Proforma != nil:
		return p.Proforma
	default:
		return p.Service
	}
}

// ToPersistencePayload maps a draft to the server's schema. Line totals are
// never sent; the server recomputes them.
func ToPersistencePayload(draft domain.Draft) (Payload, error) {
	switch draft.Variant {
	case domain.VariantInvoice:
		items := make([]domain.BillItemPayload, 0, len(draft.Items))
		for _, item := range draft.Items {
			items = append(items, domain.BillItemPayload{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return Payload{Variant: draft.Variant, Bill: &domain.BillPayload{
			CustomerName:  draft.Customer.Name,
			CustomerPhone: draft.Customer.Phone,
			Items:         items,
		}}, nil
	case domain.VariantProforma:
		items := make([]domain.ProformaItemPayload, 0, len(draft.Items))
		for _, item := range draft.Items {
			items = append(items, domain.ProformaItemPayload{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.UnitPrice,
			})
		}
		var validUntil *string
		if draft.Customer.ValidUntil != nil {
			s := draft.Customer.ValidUntil.Format(time.DateOnly)
			validUntil = &s
		}
		rounded := draft.Totals.Rounded()
		return Payload{Variant: draft.Variant, Proforma: &domain.ProformaPayload{
			CustomerName:    draft.Customer.Name,
			CustomerPhone:   draft.Customer.Phone,
			ValidUntil:      validUntil,
			Items:           items,
			DiscountAmount:  rounded.Discount,
			ShippingCharge:  rounded.Shipping,
			InsuranceCharge: rounded.Insurance,
			Subtotal:        rounded.Subtotal,
			GSTAmount:       rounded.Tax,
			GrandTotal:      rounded.GrandTotal,
		}}, nil
	case domain.VariantService:
		if draft.Service == nil {
			return Payload{}, domain.ErrMissingServiceType
		}
		return Payload{Variant: draft.Variant, Service: &domain.ServicePayload{
			CustomerName:  draft.Customer.Name,
			CustomerPhone: draft.Customer.Phone,
			ServiceType:   draft.Service.Type,
			ServicePrice:  draft.Service.Price,
			Issue:         draft.Service.Description,
		}}, nil
	default:
		return Payload{}, domain.ErrInvalidVariant
	}
}

// FromConfirmation merges the server-assigned number and totals into the
// draft. Server figures win; missing ones fall back to the draft's.
func FromConfirmation(conf domain.Confirmation, draft domain.Draft) (domain.ConfirmedDocument, error) {
	number := ""
	switch draft.Variant {
	case domain.VariantInvoice:
		number = conf.InvoiceNo
	case domain.VariantProforma:
		number = conf.ProformaNo
	case domain.VariantService:
		number = conf.ServiceInvoiceNo
		if number == "" {
			number = conf.ServiceID
		}
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return domain.ConfirmedDocument{}, domain.Detail(domain.ErrMalformedResponse, "billing server did not return a %s number", draft.Variant)
	}

	t := draft.Totals
	if conf.Subtotal.Valid {
		t.Subtotal = conf.Subtotal.Decimal
	}
	switch {
	case conf.GSTAmount.Valid:
		t.Tax = conf.GSTAmount.Decimal
		if conf.GrandTotal.Valid {
			t.GrandTotal = conf.GrandTotal.Decimal
		} else {
			t.GrandTotal = t.TaxableBase.Add(t.Tax).Add(t.Shipping).Add(t.Insurance)
		}
	case conf.GrandTotal.Valid:
		t.GrandTotal = conf.GrandTotal.Decimal
		if !t.TaxRate.IsZero() {
			tax := t.GrandTotal.Sub(t.TaxableBase).Sub(t.Shipping).Sub(t.Insurance)
			if tax.IsNegative() {
				tax = decimal.Zero
			}
			t.Tax = tax
		}
	}

	doc := domain.ConfirmedDocument{
		Variant:        draft.Variant,
		DocumentNumber: number,
		ServiceID:      conf.ServiceID,
		Customer:       draft.Customer,
		Items:          append([]domain.LineItem(nil), draft.Items...),
		Charges:        draft.Charges,
		Totals:         t.Rounded(),
		CreatedAt:      draft.CreatedAt,
	}
	if draft.Service != nil {
		service := *draft.Service
		doc.Service = &service
	}
	return doc, nil
}
