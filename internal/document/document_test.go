package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billdesk/terminal/internal/domain"
)

var fixedNow = time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	return NewBuilder().WithClock(func() time.Time { return fixedNow })
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleItems() []domain.LineItem {
	return []domain.LineItem{
		{ProductID: 1, ProductName: "Charger", Quantity: 7, UnitPrice: d("100")},
		{ProductID: 4, ProductName: "Cable", Quantity: 2, UnitPrice: d("50")},
	}
}

func TestBuildDraftValidation(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildDraft(Input{Variant: domain.VariantInvoice, Customer: domain.Customer{Name: "Ravi"}})
	require.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = b.BuildDraft(Input{Variant: domain.VariantProforma, Items: sampleItems(), Customer: domain.Customer{Name: "  "}})
	require.ErrorIs(t, err, domain.ErrMissingCustomer)

	_, err = b.BuildDraft(Input{Variant: domain.VariantService, Customer: domain.Customer{Name: "Ravi"}})
	require.ErrorIs(t, err, domain.ErrMissingServiceType)

	_, err = b.BuildDraft(Input{
		Variant: domain.VariantService,
		Service: &domain.ServiceCharge{Type: "Screen"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = b.BuildDraft(Input{
		Variant:  domain.VariantInvoice,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: "Ravi", Phone: "call me"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = b.BuildDraft(Input{
		Variant:  domain.VariantProforma,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: "Ravi"},
		Charges:  domain.Charges{Discount: d("-1")},
	})
	require.ErrorIs(t, err, domain.ErrInvalidCharge)

	_, err = b.BuildDraft(Input{Variant: "quote", Items: sampleItems()})
	require.ErrorIs(t, err, domain.ErrInvalidVariant)
}

func TestBuildDraftPhoneOptional(t *testing.T) {
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant:  domain.VariantInvoice,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: " Ravi "},
	})
	require.NoError(t, err)
	require.Equal(t, "Ravi", draft.Customer.Name)
	require.Equal(t, "INV-", draft.PlaceholderNumber[:4])
	require.True(t, draft.Totals.Rounded().GrandTotal.Equal(d("944")))
}

func TestPayloadContainsExactlyCartRows(t *testing.T) {
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant:  domain.VariantInvoice,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: "Ravi", Phone: "9876543210"},
	})
	require.NoError(t, err)

	payload, err := ToPersistencePayload(draft)
	require.NoError(t, err)
	require.Equal(t, []domain.BillItemPayload{{ProductID: 1, Quantity: 7}, {ProductID: 4, Quantity: 2}}, payload.Bill.Items)

	raw, err := json.Marshal(payload.Body())
	require.NoError(t, err)
	require.JSONEq(t, `{"customer_name":"Ravi","customer_phone":"9876543210","items":[{"product_id":1,"quantity":7},{"product_id":4,"quantity":2}]}`, string(raw))
	require.NotContains(t, string(raw), "line_total")
}

func TestProformaPayloadCarriesChargesAndTotals(t *testing.T) {
	validUntil := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant:  domain.VariantProforma,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: "Ravi", ValidUntil: &validUntil},
		Charges:  domain.Charges{Discount: d("100"), Shipping: d("40")},
	})
	require.NoError(t, err)
	require.Equal(t, "PF-", draft.PlaceholderNumber[:3])

	payload, err := ToPersistencePayload(draft)
	require.NoError(t, err)
	p := payload.Proforma
	require.Equal(t, "2024-07-01", *p.ValidUntil)
	require.True(t, p.Subtotal.Equal(d("800")))
	require.True(t, p.GSTAmount.Equal(d("126")))
	require.True(t, p.GrandTotal.Equal(d("866")))
	require.True(t, p.Items[0].Price.Equal(d("100")))
}

func TestServiceDraftAndPayload(t *testing.T) {
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant:  domain.VariantService,
		Customer: domain.Customer{Name: "Anu"},
		Service:  &domain.ServiceCharge{Type: "Screen replacement", Price: d("1499")},
	})
	require.NoError(t, err)
	require.True(t, draft.Totals.GrandTotal.Equal(d("1499")))
	require.Equal(t, "SIN-", draft.PlaceholderNumber[:4])

	payload, err := ToPersistencePayload(draft)
	require.NoError(t, err)
	raw, err := json.Marshal(payload.Body())
	require.NoError(t, err)
	require.JSONEq(t, `{"customer_name":"Anu","customer_phone":"","service_type":"Screen replacement","service_price":"1499","issue":""}`, string(raw))
}

func TestFromConfirmationPrefersServerValues(t *testing.T) {
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant:  domain.VariantInvoice,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: "Ravi"},
	})
	require.NoError(t, err)

	var conf domain.Confirmation
	require.NoError(t, json.Unmarshal([]byte(`{"invoice_no":"INV-2024-0042","grand_total":"950.00"}`), &conf))

	doc, err := FromConfirmation(conf, draft)
	require.NoError(t, err)
	require.Equal(t, "INV-2024-0042", doc.DocumentNumber)
	require.True(t, doc.Totals.GrandTotal.Equal(d("950")))
	require.True(t, doc.Totals.Tax.Equal(d("150")))
	require.Len(t, doc.Items, 2)
}

func TestFromConfirmationMissingNumber(t *testing.T) {
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant:  domain.VariantInvoice,
		Items:    sampleItems(),
		Customer: domain.Customer{Name: "Ravi"},
	})
	require.NoError(t, err)

	_, err = FromConfirmation(domain.Confirmation{ProformaNo: "PF-1"}, draft)
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFromConfirmationServiceFallsBackToServiceID(t *testing.T) {
	draft, err := newTestBuilder().BuildDraft(Input{
		Variant: domain.VariantService,
		Service: &domain.ServiceCharge{Type: "Battery", Price: d("800")},
	})
	require.NoError(t, err)

	doc, err := FromConfirmation(domain.Confirmation{ServiceID: "SRV-17"}, draft)
	require.NoError(t, err)
	require.Equal(t, "SRV-17", doc.DocumentNumber)
	require.Equal(t, "Battery", doc.Service.Type)
	require.True(t, doc.Totals.GrandTotal.Equal(d("800")))
}
