package session

import (
	"billdesk/terminal/internal/domain"
)

type State string

const (
	StateEmpty     State = "empty"
	StateBuilding  State = "building"
	StateSaving    State = "saving"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Result is what every command returns: the session as the UI should now
// show it, plus notices and the command's error, if any.
type Result struct {
	SessionID   string                    `json:"session_id"`
	Variant     domain.Variant            `json:"variant"`
	State       State                     `json:"state"`
	Placeholder string                    `json:"placeholder_number"`
	Items       []domain.LineItem         `json:"items"`
	Customer    domain.Customer           `json:"customer"`
	Service     *domain.ServiceCharge     `json:"service,omitempty"`
	Charges     domain.Charges            `json:"charges"`
	Totals      domain.Totals             `json:"totals"`
	Confirmed   *domain.ConfirmedDocument `json:"confirmed,omitempty"`
	Notices     []domain.Notice           `json:"notices,omitempty"`
	Error       *ResultError              `json:"error,omitempty"`

	Err error `json:"-"`
}

type ResultError struct {
	Kind    domain.ErrorKind `json:"kind"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message"`
}

func (r Result) OK() bool {
	return r.Err == nil
}

func (r *Result) setError(err error) {
	r.Err = err
	if err == nil {
		r.Error = nil
		return
	}
	re := &ResultError{Kind: domain.KindOf(err), Message: domain.UserMessage(err)}
	if de, ok := asDomainError(err); ok {
		re.Code = de.Code
	}
	r.Error = re
}
