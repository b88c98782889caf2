package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Invitation is returned to the relying party that created an exchange.
type Invitation struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflowId"`
	AccessToken string `json:"accessToken"`
	VCAPI       string `json:"vcapi"`
	OID4VP      string `json:"OID4VP"`
	QR          string `json:"QR"`
}

// ExchangeView is the status representation. Access token and challenge are never echoed.
type ExchangeView struct {
	ID              string         `json:"id"`
	WorkflowID      string         `json:"workflowId"`
	State           State          `json:"state"`
	Step            string         `json:"step,omitempty"`
	OID4VP          string         `json:"OID4VP,omitempty"`
	VCAPI           string         `json:"vcapi,omitempty"`
	Variables       map[string]any `json:"variables"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	RecordExpiresAt time.Time      `json:"recordExpiresAt"`
}

// StatusResponse wraps the view as {"exchange": {...}}.
type StatusResponse struct {
	Exchange ExchangeView `json:"exchange"`
}

// ToView projects an exchange for the status endpoints.
func ToView(e *Exchange) ExchangeView {
	vars := e.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	return ExchangeView{
		ID:              e.ID,
		WorkflowID:      e.WorkflowID,
		State:           e.State,
		Step:            e.Step,
		OID4VP:          e.OID4VP,
		VCAPI:           e.VCAPI,
		Variables:       vars,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		RecordExpiresAt: e.RecordExpiresAt,
	}
}

// Submission is a holder's OID4VP direct_post response.
// VPToken is JSON: an object for Data-Integrity presentations or a JSON string
// holding a compact token.
type Submission struct {
	VPToken                json.RawMessage
	PresentationSubmission json.RawMessage
}

// NewSubmission builds a Submission from the form-encoded values.
func NewSubmission(vpToken, presentationSubmission string) (*Submission, error) {
	vpToken = strings.TrimSpace(vpToken)
	if vpToken == "" {
		return nil, errors.New("vp_token is required")
	}
	if strings.TrimSpace(presentationSubmission) == "" {
		return nil, errors.New("presentation_submission is required")
	}
	if !json.Valid([]byte(presentationSubmission)) {
		return nil, errors.New("presentation_submission is not valid JSON")
	}

	var token json.RawMessage
	switch vpToken[0] {
	case '{', '[', '"':
		if !json.Valid([]byte(vpToken)) {
			return nil, errors.New("vp_token is not valid JSON")
		}
		token = json.RawMessage(vpToken)
	default:
		b, err := json.Marshal(vpToken)
		if err != nil {
			return nil, err
		}
		token = b
	}
	return &Submission{VPToken: token, PresentationSubmission: json.RawMessage(presentationSubmission)}, nil
}

// Entra callback request statuses.
const (
	CallbackRequestRetrieved     = "request_retrieved"
	CallbackPresentationVerified = "presentation_verified"
	CallbackPresentationError    = "presentation_error"
)

// CallbackRequest is posted by Microsoft Entra Verified ID.
type CallbackRequest struct {
	RequestID     string           `json:"requestId"`
	RequestStatus string           `json:"requestStatus"`
	State         string           `json:"state,omitempty"`
	Receipt       *CallbackReceipt `json:"receipt,omitempty"`
	Error         *CallbackError   `json:"error,omitempty"`
}

// CallbackReceipt carries the presentation; VPToken is an object or a compact token string.
type CallbackReceipt struct {
	VPToken json.RawMessage `json:"vp_token,omitempty"`
	IDToken string          `json:"id_token,omitempty"`
}

// CallbackError describes a provider-side failure.
type CallbackError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Normalize trims identifiers.
func (c *CallbackRequest) Normalize() {
	c.RequestID = strings.TrimSpace(c.RequestID)
	c.RequestStatus = strings.TrimSpace(c.RequestStatus)
}

// Validate checks the fields every status requires.
func (c *CallbackRequest) Validate() error {
	if c.RequestID == "" {
		return errors.New("requestId is required")
	}
	switch c.RequestStatus {
	case CallbackRequestRetrieved, CallbackPresentationError:
		return nil
	case CallbackPresentationVerified:
		if c.Receipt == nil || len(c.Receipt.VPToken) == 0 {
			return errors.New("receipt.vp_token is required")
		}
		return nil
	default:
		return errors.New("unsupported requestStatus")
	}
}
