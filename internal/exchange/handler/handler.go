package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/exchange/models"
	"verigate/internal/exchange/service"
	"verigate/internal/platform/middleware"
	ratelimit "verigate/internal/ratelimit/models"
	"verigate/internal/workflow"
	"verigate/internal/workflow/authrequest"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
)

// Service defines the exchange operations exposed over HTTP.
type Service interface {
	CreateExchange(ctx context.Context, workflowID string, creds service.ClientCredentials) (*models.Invitation, error)
	GetExchangeStatus(ctx context.Context, workflowID, exchangeID, accessToken string) (*models.StatusResponse, error)
	TouchExchange(ctx context.Context, workflowID, exchangeID string) error
	GetAuthorizationRequest(ctx context.Context, workflowID, exchangeID string) (string, error)
	SubmitResponse(ctx context.Context, workflowID, exchangeID string, sub *models.Submission) error
	HandleCallback(ctx context.Context, accessToken, apiKey string, cb *models.CallbackRequest) error
}

// Limiter returns the middleware enforcing the request budget of a class.
type Limiter func(class ratelimit.EndpointClass) func(http.Handler) http.Handler

// Handler serves relying party, wallet and provider callback endpoints.
type Handler struct {
	exchanges Service
	logger    *slog.Logger
	limit     Limiter
}

// Option configures the Handler.
type Option func(*Handler)

// WithRateLimit applies limit per endpoint class. Without it no route is limited.
func WithRateLimit(limit Limiter) Option {
	return func(h *Handler) {
		if limit != nil {
			h.limit = limit
		}
	}
}

// New creates a new exchange Handler.
func New(exchanges Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		exchanges: exchanges,
		logger:    logger,
		limit: func(ratelimit.EndpointClass) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the exchange routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/workflows/{workflowId}/exchanges", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.limit(ratelimit.ClassRelyingParty))
			r.Post("/", h.HandleCreateExchange)
			r.Get("/{exchangeId}", h.HandleGetExchange)
			r.Post("/{exchangeId}", h.HandleTouchExchange)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.limit(ratelimit.ClassWallet))
			r.Get("/{exchangeId}/openid/client/authorization/request", h.HandleAuthorizationRequest)
			r.Post("/{exchangeId}/openid/client/authorization/response", h.HandleAuthorizationResponse)
		})
	})
	r.With(h.limit(ratelimit.ClassCallback)).Post("/verification/callback", h.HandleVerificationCallback)
}

// HandleCreateExchange authenticates the relying party with HTTP Basic
// credentials. Missing credentials are checked after the workflow lookup so
// an unknown workflow always reads as 404.
func (h *Handler) HandleCreateExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID := chi.URLParam(r, "workflowId")

	clientID, clientSecret, _ := r.BasicAuth()
	inv, err := h.exchanges.CreateExchange(ctx, workflowID, service.ClientCredentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		h.writeError(ctx, w, "failed to create exchange", err, "workflow_id", workflowID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) HandleGetExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID, exchangeID := chi.URLParam(r, "workflowId"), chi.URLParam(r, "exchangeId")

	resp, err := h.exchanges.GetExchangeStatus(ctx, workflowID, exchangeID, httputil.BearerToken(r))
	if err != nil {
		h.writeError(ctx, w, "failed to get exchange", err, "exchange_id", exchangeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleTouchExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID, exchangeID := chi.URLParam(r, "workflowId"), chi.URLParam(r, "exchangeId")

	if err := h.exchanges.TouchExchange(ctx, workflowID, exchangeID); err != nil {
		h.writeError(ctx, w, "failed to touch exchange", err, "exchange_id", exchangeID)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleAuthorizationRequest serves the signed OID4VP request object to wallets.
func (h *Handler) HandleAuthorizationRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID, exchangeID := chi.URLParam(r, "workflowId"), chi.URLParam(r, "exchangeId")

	requestObject, err := h.exchanges.GetAuthorizationRequest(ctx, workflowID, exchangeID)
	if err != nil {
		h.writeError(ctx, w, "failed to build authorization request", err, "exchange_id", exchangeID)
		return
	}
	w.Header().Set("Content-Type", authrequest.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(requestObject))
}

// HandleAuthorizationResponse accepts a wallet's form-encoded direct_post response.
func (h *Handler) HandleAuthorizationResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID, exchangeID := chi.URLParam(r, "workflowId"), chi.URLParam(r, "exchangeId")

	if err := r.ParseForm(); err != nil {
		h.writeError(ctx, w, "failed to parse authorization response",
			dErrors.New(dErrors.CodeBadRequest, "invalid form body"), "exchange_id", exchangeID)
		return
	}
	sub, err := models.NewSubmission(r.PostForm.Get("vp_token"), r.PostForm.Get("presentation_submission"))
	if err != nil {
		h.writeError(ctx, w, "invalid authorization response",
			dErrors.New(dErrors.CodeBadRequest, err.Error()), "exchange_id", exchangeID)
		return
	}

	if err := h.exchanges.SubmitResponse(ctx, workflowID, exchangeID, sub); err != nil {
		h.writeError(ctx, w, "authorization response rejected", err, "exchange_id", exchangeID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerificationCallback receives Entra Verified ID status callbacks.
func (h *Handler) HandleVerificationCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	cb, ok := httputil.ReadRequest[models.CallbackRequest](ctx, w, r, h.logger.With("request_id", requestID))
	if !ok {
		return
	}
	if err := h.exchanges.HandleCallback(ctx, httputil.BearerToken(r), r.Header.Get(workflow.HeaderAPIKey), cb); err != nil {
		h.writeError(ctx, w, "failed to handle verification callback", err,
			"provider_request_id", cb.RequestID,
			"request_status", cb.RequestStatus,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// writeError logs client errors at warn and server errors at error, then
// writes the translated response.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", middleware.GetRequestID(ctx),
		"error", err,
	)
	if httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
