package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/listing"
	"billdesk/terminal/internal/session"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	resp, err := a.auth.Login(req)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.generateCSRFToken()})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, notice := a.service.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	body := map[string]any{"products": products}
	if notice != nil {
		body["notice"] = notice
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleProductsRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.RefreshCatalog(r.Context()))
}

type openSessionRequest struct {
	Variant string `json:"variant"`
}

func (a *API) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	variant, ok := domain.ParseVariant(req.Variant)
	if !ok {
		a.writeError(w, domain.ErrInvalidVariant)
		return
	}
	res, err := a.service.OpenSession(r.Context(), variant)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) sessionCommand(w http.ResponseWriter, res session.Result, err error) {
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeResult(w, http.StatusOK, res, res.Err)
}

func (a *API) handleViewSession(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.ViewSession(r.Context(), chi.URLParam(r, "sessionID"))
	a.sessionCommand(w, res, err)
}

func (a *API) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := a.service.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req session.AddItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := a.service.AddItem(r.Context(), chi.URLParam(r, "sessionID"), req)
	a.sessionCommand(w, res, err)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.writeError(w, domain.ErrIndexOutOfRange)
		return
	}
	res, err := a.service.RemoveItem(r.Context(), chi.URLParam(r, "sessionID"), index)
	a.sessionCommand(w, res, err)
}

func (a *API) handleClearItems(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.ClearSession(r.Context(), chi.URLParam(r, "sessionID"))
	a.sessionCommand(w, res, err)
}

type customerRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	ValidUntil string `json:"valid_until"`
}

func (a *API) handleSetCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	customer := domain.Customer{Name: req.Name, Phone: req.Phone}
	if raw := strings.TrimSpace(req.ValidUntil); raw != "" {
		validUntil, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			a.writeError(w, domain.Detail(domain.ErrInvalidCustomer, "valid until must be a date like 2006-01-02"))
			return
		}
		customer.ValidUntil = &validUntil
	}
	res, err := a.service.SetCustomer(r.Context(), chi.URLParam(r, "sessionID"), customer)
	a.sessionCommand(w, res, err)
}

type serviceRequest struct {
	ServiceType string `json:"service_type"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

func (a *API) handleSetService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	price := decimal.Zero
	if raw := strings.TrimSpace(req.Price); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			a.writeError(w, domain.ErrInvalidPrice)
			return
		}
		price = parsed
	}
	res, err := a.service.SetService(r.Context(), chi.URLParam(r, "sessionID"), domain.ServiceCharge{
		Type:        req.ServiceType,
		Description: req.Description,
		Price:       price,
	})
	a.sessionCommand(w, res, err)
}

func (a *API) handleSetCharges(w http.ResponseWriter, r *http.Request) {
	var req session.ChargesInput
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := a.service.SetCharges(r.Context(), chi.URLParam(r, "sessionID"), req)
	a.sessionCommand(w, res, err)
}

func (a *API) handleSave(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Save(r.Context(), chi.URLParam(r, "sessionID"))
	a.sessionCommand(w, res, err)
}

type acknowledgeRequest struct {
	Print bool `json:"print"`
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	res, err := a.service.Acknowledge(r.Context(), chi.URLParam(r, "sessionID"), req.Print)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeResult(w, http.StatusOK, res, res.Err)
}

type suggestionRequest struct {
	Query string `json:"query"`
}

func (a *API) handleSubmitSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	seq, err := a.service.SubmitSuggestion(r.Context(), chi.URLParam(r, "sessionID"), req.Query)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"seq": seq})
}

func (a *API) handleLatestSuggestions(w http.ResponseWriter, r *http.Request) {
	res, pending, err := a.service.LatestSuggestions(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": res, "pending": pending})
}

func parseFilter(r *http.Request) (listing.Filter, error) {
	q := r.URL.Query()
	f := listing.Filter{Customer: q.Get("customer")}
	if raw := strings.TrimSpace(q.Get("variant")); raw != "" {
		variant, ok := domain.ParseVariant(raw)
		if !ok {
			return f, domain.ErrInvalidVariant
		}
		f.Variant = variant
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, &domain.Error{Kind: domain.KindValidation, Code: "invalid_date", Message: "date must look like 2006-01-02"}
		}
		f.Date = date
	}
	return f, nil
}

func atoiDefault(raw string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return n
	}
	return fallback
}

func (a *API) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	q := r.URL.Query()
	page, err := a.service.ListDocuments(r.Context(), f, atoiDefault(q.Get("page"), 1), atoiDefault(q.Get("per_page"), listing.DefaultPerPage))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "info": page.Info()})
}

func (a *API) handleExportDocuments(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.csv"`)
	if err := a.service.ExportDocuments(r.Context(), w, f); err != nil {
		a.logger.Error("csv export failed", "error", err)
	}
}

func documentRef(r *http.Request) (domain.Variant, string, error) {
	variant, ok := domain.ParseVariant(chi.URLParam(r, "variant"))
	if !ok {
		return "", "", domain.ErrInvalidVariant
	}
	return variant, chi.URLParam(r, "number"), nil
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	variant, number, err := documentRef(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	layout, err := a.service.Receipt(r.Context(), variant, number)
	if err != nil {
		a.writeError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "html":
		page, err := layout.HTML()
		if err != nil {
			a.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	case "escpos":
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(layout.ESCPOS())
	case "json":
		writeJSON(w, http.StatusOK, layout)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(layout.Text()))
	}
}

func (a *API) handlePrint(w http.ResponseWriter, r *http.Request) {
	variant, number, err := documentRef(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	jobID, err := a.service.PrintReceipt(r.Context(), variant, number)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			writeStatus(w, http.StatusServiceUnavailable, "printer_unavailable", "printer is not available")
			return
		}
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

func (a *API) handleCashDrawerOpen(w http.ResponseWriter, r *http.Request) {
	cmd, err := a.service.OpenCashDrawer(r.Context())
	if err != nil {
		a.logger.Warn("cash drawer pulse not printed", "error", err)
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (a *API) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if !a.auth.ValidateManagerPIN(r.Header.Get("X-Manager-PIN")) {
		writeStatus(w, http.StatusForbidden, "invalid_manager_pin", "manager PIN is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		a.writeError(w, domain.Detail(domain.ErrDocumentNotFound, "service %q not found", chi.URLParam(r, "id")))
		return
	}
	if err := a.service.DeleteService(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	var rng domain.ReportRange
	q := r.URL.Query()
	for key, dest := range map[string]*time.Time{"start": &rng.Start, "end": &rng.End} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			a.writeError(w, &domain.Error{Kind: domain.KindValidation, Code: "invalid_date", Message: key + " must look like 2006-01-02"})
			return
		}
		*dest = parsed
	}
	if !rng.Start.IsZero() && !rng.End.IsZero() && rng.End.Before(rng.Start) {
		a.writeError(w, &domain.Error{Kind: domain.KindValidation, Code: "invalid_range", Message: "end is before start"})
		return
	}
	view, err := a.service.Reports(r.Context(), rng)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

