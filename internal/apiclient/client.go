// Package apiclient talks to the billing server, which owns stock, numbering
// and storage. Every request carries the CSRF header and cookie the server's
// session middleware expects.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"billdesk/terminal/internal/document"
	"billdesk/terminal/internal/domain"
)

const (
	csrfHeader    = "X-CSRFToken"
	csrfCookie    = "csrftoken"
	sessionCookie = "sessionid"

	maxPages     = 200
	maxErrorBody = 64 << 10
)

const (
	pathProducts       = "/api/products/"
	pathBills          = "/api/bills/"
	pathCreateBill     = "/api/bills/create/"
	pathProformaList   = "/api/proforma/list/"
	pathCreateProforma = "/api/proforma/create/"
	pathServices       = "/api/services/"
	pathCreateService  = "/api/services/create/"
	pathReports        = "/api/reports/"
)

type Options struct {
	CSRFToken     string
	SessionCookie string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	var cookies []*http.Cookie
	if opts.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: csrfCookie, Value: opts.CSRFToken, Path: "/"})
	}
	if opts.SessionCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: sessionCookie, Value: opts.SessionCookie, Path: "/"})
	}
	if len(cookies) > 0 {
		httpClient.Jar.SetCookies(base, cookies)
	}

	return &Client{baseURL: base, httpClient: httpClient}, nil
}

// csrfToken reads the current token from the jar so a rotated cookie from the
// server is picked up automatically.
func (c *Client) csrfToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == csrfCookie {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) resolve(path string, query url.Values) string {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	u := c.baseURL.ResolveReference(ref)
	if !ref.IsAbs() {
		u.Path = strings.TrimRight(c.baseURL.Path, "/") + ref.Path
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends one request. rawURL may be a path or an absolute "next" link.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.csrfToken(); token != "" {
		req.Header.Set(csrfHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Detail(domain.ErrMalformedResponse, "%s: unreadable response from billing server", op)
	}
	return nil
}

// decodeAPIError turns an error body into an APIError. Bodies are either
// {"message": "..."} (or DRF's {"detail": "..."}) or a field-keyed map.
func decodeAPIError(status int, raw []byte) *domain.APIError {
	apiErr := &domain.APIError{Status: status}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || len(body) == 0 {
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			apiErr.Message = strings.Join(list, "; ")
			return apiErr
		}
		apiErr.Message = fmt.Sprintf("billing server returned %d %s", status, http.StatusText(status))
		return apiErr
	}

	for _, key := range []string{"message", "detail", "error"} {
		if msg, ok := body[key]; ok && len(body) == 1 {
			var s string
			if json.Unmarshal(msg, &s) == nil && s != "" {
				apiErr.Message = s
				return apiErr
			}
		}
	}

	apiErr.Fields = make(map[string][]string, len(body))
	for key, value := range body {
		apiErr.Fields[key] = fieldMessages(value)
	}
	apiErr.Message = domain.FlattenFieldErrors(apiErr.Fields)
	return apiErr
}

func fieldMessages(raw json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			out = append(out, stringify(v))
		}
		return out
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return []string{string(raw)}
	}
	return []string{stringify(v)}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

type page[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

// listAll follows "next" links. The first page may also be a bare array.
func listAll[T any](ctx context.Context, c *Client, op, path string) ([]T, error) {
	var all []T
	next := c.resolve(path, nil)
	for i := 0; next != "" && i < maxPages; i++ {
		var raw json.RawMessage
		if err := c.do(ctx, op, http.MethodGet, next, nil, &raw); err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, domain.Detail(domain.ErrMalformedResponse, "%s: unreadable list", op)
			}
			return append(all, items...), nil
		}

		var p page[T]
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, domain.Detail(domain.ErrMalformedResponse, "%s: unreadable page", op)
		}
		all = append(all, p.Results...)
		next = ""
		if p.Next != nil && *p.Next != "" {
			next = c.resolve(*p.Next, nil)
		}
	}
	return all, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return listAll[domain.Product](ctx, c, "list products", pathProducts)
}

func (c *Client) ListBills(ctx context.Context) ([]domain.InvoiceRecord, error) {
	return listAll[domain.InvoiceRecord](ctx, c, "list bills", pathBills)
}

func (c *Client) ListProforma(ctx context.Context) ([]domain.ProformaRecord, error) {
	return listAll[domain.ProformaRecord](ctx, c, "list proforma", pathProformaList)
}

func (c *Client) ListServices(ctx context.Context) ([]domain.ServiceRecord, error) {
	return listAll[domain.ServiceRecord](ctx, c, "list services", pathServices)
}

// Create posts a document payload to its create endpoint.
func (c *Client) Create(ctx context.Context, payload document.Payload) (domain.Confirmation, error) {
	var path string
	switch payload.Variant {
	case domain.VariantInvoice:
		path = pathCreateBill
	case domain.VariantProforma:
		path = pathCreateProforma
	case domain.VariantService:
		path = pathCreateService
	default:
		return domain.Confirmation{}, domain.ErrInvalidVariant
	}

	var conf domain.Confirmation
	op := "create " + string(payload.Variant)
	if err := c.do(ctx, op, http.MethodPost, c.resolve(path, nil), payload.Body(), &conf); err != nil {
		return domain.Confirmation{}, err
	}
	return conf, nil
}

func (c *Client) DeleteService(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("delete service: invalid id")
	}
	path := pathServices + strconv.FormatInt(id, 10) + "/"
	return c.do(ctx, "delete service", http.MethodDelete, c.resolve(path, nil), nil, nil)
}

func (c *Client) Reports(ctx context.Context, rng domain.ReportRange) (domain.Report, error) {
	query := url.Values{}
	if !rng.Start.IsZero() {
		query.Set("start", rng.Start.Format(time.DateOnly))
	}
	if !rng.End.IsZero() {
		query.Set("end", rng.End.Format(time.DateOnly))
	}
	var report domain.Report
	if err := c.do(ctx, "reports", http.MethodGet, c.resolve(pathReports, query), nil, &report); err != nil {
		return domain.Report{}, err
	}
	return report, nil
}
