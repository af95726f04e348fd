package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindStock      ErrorKind = "stock"
	KindNetwork    ErrorKind = "network"
	KindAPI        ErrorKind = "api"
	KindMalformed  ErrorKind = "malformed_response"
	KindNotFound   ErrorKind = "not_found"
	KindState      ErrorKind = "state"
	KindUnknown    ErrorKind = "unknown"
)

// Error is a local, user-presentable failure. Compare with errors.Is against
// the sentinels below; Code stays stable for API consumers.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidQuantity    = &Error{Kind: KindValidation, Code: "invalid_quantity", Message: "quantity must be a positive whole number"}
	ErrInvalidPrice       = &Error{Kind: KindValidation, Code: "invalid_price", Message: "price must be a positive amount"}
	ErrEmptyCart          = &Error{Kind: KindValidation, Code: "empty_cart", Message: "add at least one item"}
	ErrMissingCustomer    = &Error{Kind: KindValidation, Code: "missing_customer", Message: "customer name is required"}
	ErrMissingServiceType = &Error{Kind: KindValidation, Code: "missing_service_type", Message: "service type is required"}
	ErrIndexOutOfRange    = &Error{Kind: KindValidation, Code: "index_out_of_range", Message: "no item at that position"}
	ErrInvalidCharge      = &Error{Kind: KindValidation, Code: "invalid_charge", Message: "charges must be zero or positive"}
	ErrInvalidCustomer    = &Error{Kind: KindValidation, Code: "invalid_customer", Message: "customer details are invalid"}
	ErrInvalidVariant     = &Error{Kind: KindValidation, Code: "invalid_variant", Message: "unknown document type"}

	ErrOutOfStock       = &Error{Kind: KindStock, Code: "out_of_stock", Message: "product is out of stock"}
	ErrExceedsAvailable = &Error{Kind: KindStock, Code: "exceeds_available", Message: "requested quantity exceeds available stock"}

	ErrMalformedResponse = &Error{Kind: KindMalformed, Code: "malformed_response", Message: "unexpected response from billing server"}

	ErrProductNotFound  = &Error{Kind: KindNotFound, Code: "product_not_found", Message: "product not found"}
	ErrDocumentNotFound = &Error{Kind: KindNotFound, Code: "document_not_found", Message: "document not found"}
	ErrSessionNotFound  = &Error{Kind: KindNotFound, Code: "session_not_found", Message: "session not found"}

	ErrSaveInProgress = &Error{Kind: KindState, Code: "save_in_progress", Message: "document is being saved"}
	ErrNotConfirmed   = &Error{Kind: KindState, Code: "not_confirmed", Message: "no confirmed document to acknowledge"}
	ErrAwaitingAck    = &Error{Kind: KindState, Code: "awaiting_acknowledge", Message: "document already saved; acknowledge it to start a new one"}
	ErrWrongVariant   = &Error{Kind: KindState, Code: "wrong_variant", Message: "operation does not apply to this document type"}
	ErrForbidden      = &Error{Kind: KindState, Code: "forbidden", Message: "operator is not allowed to do that"}
)

// Detail returns a copy of a sentinel with a more specific message. The copy
// still matches the sentinel under errors.Is.
func Detail(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

// NetworkError wraps a transport failure talking to the billing server.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx answer from the billing server.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billing server returned status %d", e.Status)
	}
	return e.Message
}

// FlattenFieldErrors renders a field-keyed error map as "field: a, b; other: c"
// with keys in sorted order.
func FlattenFieldErrors(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+strings.Join(fields[key], ", "))
	}
	return strings.Join(parts, "; ")
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return KindAPI
	}
	return KindUnknown
}

// UserMessage is the text shown to an operator for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case "":
		return ""
	case KindNetwork:
		return "could not reach billing server"
	case KindUnknown:
		return "unexpected error"
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
