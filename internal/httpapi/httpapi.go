// Package httpapi is the terminal's local JSON API used by the counter UI.
package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/observability"
	"billdesk/terminal/internal/service"
)

type Options struct {
	AllowedOrigin string
	// LoginLimit is the number of login attempts per client IP per minute.
	LoginLimit int
	// PINLimit is the number of manager PIN attempts per client IP per minute.
	PINLimit   int
	Production bool
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

type API struct {
	service    *service.Service
	auth       *AuthManager
	opts       Options
	logger     *slog.Logger
	csrfSecret []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.LoginLimit <= 0 {
		opts.LoginLimit = 5
	}
	if opts.PINLimit <= 0 {
		opts.PINLimit = 8
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:    svc,
		auth:       auth,
		opts:       opts,
		logger:     opts.Logger,
		csrfSecret: csrfSecret,
	}
}

// csrfTokenForHour is the hex HMAC of an hour bucket (Unix seconds).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and previous hour's token.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

func limitHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many attempts", "code": "rate_limited"})
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range a.middlewareStack() {
		r.Use(mw)
	}

	loginLimiter := httprate.Limit(a.opts.LoginLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitHandler),
	)
	pinLimiter := httprate.Limit(a.opts.PINLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitHandler),
	)

	r.Get("/healthz", a.handleHealth)
	if a.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.opts.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimiter).Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleCashier, domain.RoleAdmin))

			r.Get("/products", a.handleProducts)
			r.Post("/products/refresh", a.handleProductsRefresh)

			r.Post("/sessions", a.handleOpenSession)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", a.handleViewSession)
				r.Delete("/", a.handleCloseSession)
				r.Post("/items", a.handleAddItem)
				r.Delete("/items", a.handleClearItems)
				r.Delete("/items/{index}", a.handleRemoveItem)
				r.Put("/customer", a.handleSetCustomer)
				r.Put("/service", a.handleSetService)
				r.Put("/charges", a.handleSetCharges)
				r.Post("/save", a.handleSave)
				r.Post("/acknowledge", a.handleAcknowledge)
				r.Post("/suggestions", a.handleSubmitSuggestion)
				r.Get("/suggestions", a.handleLatestSuggestions)
			})

			r.Get("/documents", a.handleListDocuments)
			r.Get("/documents/export.csv", a.handleExportDocuments)
			r.Get("/documents/{variant}/{number}/receipt", a.handleReceipt)
			r.Post("/documents/{variant}/{number}/print", a.handlePrint)
			r.Post("/hardware/cash-drawer/open", a.handleCashDrawerOpen)

			r.With(pinLimiter).Delete("/services/{id}", a.handleDeleteService)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleAdmin))
			r.Get("/reports", a.handleReports)
		})
	})

	return r
}

func (a *API) middlewareStack() []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'",
		SSLRedirect:           a.opts.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recoverer,
		a.opts.Metrics.Middleware,
		secureMiddleware.Handler,
		a.cors,
		a.requestLog,
		a.limitBody,
		a.checkCSRF,
	}
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.opts.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Manager-PIN")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(startedAt),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *API) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

// csrfExemptPaths are called before a token can be fetched.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		for _, exempt := range csrfExemptPaths {
			if r.URL.Path == exempt {
				next.ServeHTTP(w, r)
				return
			}
		}
		if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			a.logger.Warn("csrf validation failed", "path", r.URL.Path)
			writeStatus(w, http.StatusForbidden, "csrf_invalid", "missing or invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeStatus(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			if err != nil {
				writeStatus(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeStatus(w, http.StatusForbidden, domain.ErrForbidden.Code, "forbidden role")
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// statusFor maps an error to the HTTP status shown to the counter UI.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindStock, domain.KindState:
		if errors.Is(err, domain.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNetwork, domain.KindMalformed:
		return http.StatusBadGateway
	case domain.KindAPI:
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return string(domain.KindOf(err))
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("request failed", "status", status, "kind", domain.KindOf(err), "error", err)
	}
	writeStatus(w, status, errorCode(err), domain.UserMessage(err))
}

// writeResult sends a command result, with an error status when the command
// was rejected. The body is the full result either way.
func (a *API) writeResult(w http.ResponseWriter, okStatus int, res any, err error) {
	if err == nil {
		writeJSON(w, okStatus, res)
		return
	}
	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("command failed", "status", status, "kind", domain.KindOf(err), "error", err)
	}
	writeJSON(w, status, res)
}

func writeStatus(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
