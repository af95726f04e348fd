package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billdesk/terminal/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(d(want)), "want %s got %s", want, got)
}

func TestComputeDefaultTax(t *testing.T) {
	items := []domain.LineItem{{ProductID: 1, Quantity: 7, UnitPrice: d("100")}}
	got := Compute(items, DefaultConfig()).Rounded()

	requireDecimal(t, "700", got.Subtotal)
	requireDecimal(t, "126", got.Tax)
	requireDecimal(t, "826", got.GrandTotal)
}

func TestComputeRoundsOnlyAtPresentation(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: 1, Quantity: 3, UnitPrice: d("0.333")},
		{ProductID: 2, Quantity: 1, UnitPrice: d("10.01")},
	}
	raw := Compute(items, DefaultConfig())
	requireDecimal(t, "11.009", raw.Subtotal)
	requireDecimal(t, "1.98162", raw.Tax)

	rounded := raw.Rounded()
	requireDecimal(t, "1.98", rounded.Tax)
	requireDecimal(t, "12.99", rounded.GrandTotal)
}

func TestDiscountLargerThanSubtotal(t *testing.T) {
	items := []domain.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: d("50")}}
	got := Compute(items, ConfigFor(domain.VariantProforma, domain.Charges{
		Discount:  d("80"),
		Shipping:  d("20"),
		Insurance: d("5"),
	}))
	require.True(t, got.TaxableBase.IsZero())
	require.True(t, got.Tax.IsZero())
	requireDecimal(t, "25", got.GrandTotal)
}

func TestEmptyItemsYieldZeroTotals(t *testing.T) {
	got := Compute(nil, DefaultConfig())
	require.True(t, got.Subtotal.IsZero())
	require.True(t, got.Tax.IsZero())
	require.True(t, got.GrandTotal.IsZero())
}

func TestConfigForVariants(t *testing.T) {
	charges := domain.Charges{Discount: d("10"), Shipping: d("5")}

	invoice := ConfigFor(domain.VariantInvoice, charges)
	require.True(t, invoice.Discount.IsZero())
	require.True(t, invoice.TaxRate.Equal(DefaultTaxRate))

	service := ConfigFor(domain.VariantService, charges)
	require.True(t, service.TaxRate.IsZero())
	requireDecimal(t, "499", ComputeAmount(d("499"), service).GrandTotal)

	proforma := ConfigFor(domain.VariantProforma, charges)
	requireDecimal(t, "10", proforma.Discount)
}

func TestNegativeChargesAreClamped(t *testing.T) {
	items := []domain.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: d("100")}}
	got := Compute(items, Config{TaxRate: DefaultTaxRate, Discount: d("-10"), Shipping: d("-3")})
	requireDecimal(t, "118", got.GrandTotal)
}
