package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Variant string

const (
	VariantInvoice  Variant = "invoice"
	VariantProforma Variant = "proforma"
	VariantService  Variant = "service"
)

func ParseVariant(raw string) (Variant, bool) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case VariantInvoice, "bill", "product":
		return VariantInvoice, true
	case VariantProforma:
		return VariantProforma, true
	case VariantService:
		return VariantService, true
	default:
		return "", false
	}
}

// Product is a catalog record as served by the billing API. The terminal never
// mutates it; stock is a snapshot figure only.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	IMEI          string          `json:"imei,omitempty"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	GSTPercentage float64         `json:"gst_percentage"`
	Category      string          `json:"category"`
	CategoryName  string          `json:"category_name,omitempty"`
	Stock         int             `json:"stock"`
	Agency        string          `json:"agency_name"`
}

func (p Product) DisplayCategory() string {
	if p.CategoryName != "" {
		return p.CategoryName
	}
	if p.Category != "" {
		return p.Category
	}
	return "General"
}

type LineItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Charges are the optional extra amounts a proforma may carry.
type Charges struct {
	Discount  decimal.Decimal `json:"discount"`
	Shipping  decimal.Decimal `json:"shipping"`
	Insurance decimal.Decimal `json:"insurance"`
}

// Totals are always derived from a line-item set; fields are unrounded until
// Rounded is called for display.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Tax         decimal.Decimal `json:"tax"`
	Shipping    decimal.Decimal `json:"shipping"`
	Insurance   decimal.Decimal `json:"insurance"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:    t.Subtotal.Round(2),
		Discount:    t.Discount.Round(2),
		TaxableBase: t.TaxableBase.Round(2),
		TaxRate:     t.TaxRate,
		Tax:         t.Tax.Round(2),
		Shipping:    t.Shipping.Round(2),
		Insurance:   t.Insurance.Round(2),
		GrandTotal:  t.GrandTotal.Round(2),
	}
}

type Customer struct {
	Name       string     `json:"name" validate:"max=200"`
	Phone      string     `json:"phone,omitempty" validate:"omitempty,max=15,phone"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

type ServiceCharge struct {
	Type        string          `json:"service_type" validate:"max=200"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

type Draft struct {
	Variant           Variant        `json:"variant"`
	PlaceholderNumber string         `json:"placeholder_number"`
	Customer          Customer       `json:"customer"`
	Items             []LineItem     `json:"items,omitempty"`
	Service           *ServiceCharge `json:"service,omitempty"`
	Charges           Charges        `json:"charges"`
	Totals            Totals         `json:"totals"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ConfirmedDocument is a draft after the API assigned its number. It is never
// modified after construction.
type ConfirmedDocument struct {
	Variant        Variant        `json:"variant"`
	DocumentNumber string         `json:"document_number"`
	ServiceID      string         `json:"service_id,omitempty"`
	Customer       Customer       `json:"customer"`
	Items          []LineItem     `json:"items,omitempty"`
	Service        *ServiceCharge `json:"service,omitempty"`
	Charges        Charges        `json:"charges"`
	Totals         Totals         `json:"totals"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Wire payloads for the create endpoints.

type BillItemPayload struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type BillPayload struct {
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	Items         []BillItemPayload `json:"items"`
}

type ProformaItemPayload struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type ProformaPayload struct {
	CustomerName    string                `json:"customer_name"`
	CustomerPhone   string                `json:"customer_phone"`
	ValidUntil      *string               `json:"valid_until"`
	Items           []ProformaItemPayload `json:"items"`
	DiscountAmount  decimal.Decimal       `json:"discount_amount"`
	ShippingCharge  decimal.Decimal       `json:"shipping_charge"`
	InsuranceCharge decimal.Decimal       `json:"insurance_charge"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	GSTAmount       decimal.Decimal       `json:"gst_amount"`
	GrandTotal      decimal.Decimal       `json:"grand_total"`
}

type ServicePayload struct {
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	ServiceType   string          `json:"service_type"`
	ServicePrice  decimal.Decimal `json:"service_price"`
	Issue         string          `json:"issue"`
}

// Confirmation is the union of the create endpoints' success bodies.
type Confirmation struct {
	InvoiceNo        string              `json:"invoice_no,omitempty"`
	ProformaNo       string              `json:"proforma_no,omitempty"`
	ServiceID        string              `json:"service_id,omitempty"`
	ServiceInvoiceNo string              `json:"service_invoice_no,omitempty"`
	Subtotal         decimal.NullDecimal `json:"subtotal"`
	GSTAmount        decimal.NullDecimal `json:"gst_amount"`
	GrandTotal       decimal.NullDecimal `json:"grand_total"`
}

// Records returned by the list endpoints.

type RecordItem struct {
	ID       int64           `json:"id"`
	Product  *Product        `json:"product,omitempty"`
	Name     string          `json:"name,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
}

func (r RecordItem) DisplayName() string {
	if r.Product != nil && r.Product.Name != "" {
		return r.Product.Name
	}
	if r.Name != "" {
		return r.Name
	}
	return "Unknown Product"
}

type InvoiceRecord struct {
	ID            int64           `json:"id"`
	InvoiceNo     string          `json:"invoice_no"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Items         []RecordItem    `json:"items,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ProformaRecord struct {
	ID              int64           `json:"id"`
	ProformaNo      string          `json:"proforma_no"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	ValidUntil      string          `json:"valid_until,omitempty"`
	Items           []RecordItem    `json:"items,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	ShippingCharge  decimal.Decimal `json:"shipping_charge"`
	InsuranceCharge decimal.Decimal `json:"insurance_charge"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	GSTAmount       decimal.Decimal `json:"gst_amount"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ServiceRecord struct {
	ID               int64           `json:"id"`
	ServiceID        string          `json:"service_id"`
	ServiceInvoiceNo string          `json:"service_invoice_no,omitempty"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone"`
	ServiceType      string          `json:"service_type"`
	ServicePrice     decimal.Decimal `json:"service_price"`
	Issue            string          `json:"issue,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Number prefers the invoice number over the internal service id.
func (s ServiceRecord) Number() string {
	if s.ServiceInvoiceNo != "" {
		return s.ServiceInvoiceNo
	}
	return s.ServiceID
}

// DocumentSummary is the variant-independent row used by listings and exports.
type DocumentSummary struct {
	Variant       Variant         `json:"variant"`
	Number        string          `json:"number"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Report struct {
	TotalSales    decimal.Decimal `json:"total_sales"`
	ServiceIncome decimal.Decimal `json:"service_income"`
	DailySales    decimal.Decimal `json:"daily_sales"`
	MonthlySales  decimal.Decimal `json:"monthly_sales"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type ReportRange struct {
	Start time.Time
	End   time.Time
}

// Operator auth types for the terminal's local API.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

type CashDrawerCommand struct {
	CommandBase64 string `json:"command_base64"`
	Note          string `json:"note"`
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message that does not block the action, such as a
// degraded catalog or a low-stock hint.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// LowStockThreshold is the stock level below which selecting a product warns.
const LowStockThreshold = 4
