package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "verigate/pkg/domain-errors"
)

// Request is a JSON body that trims itself and checks its required fields.
type Request interface {
	Normalize()
	Validate() error
}

// ReadRequest decodes the body into a new T, normalizes it and validates it.
// When it returns false the 400 has already been written.
func ReadRequest[T any, PT interface {
	*T
	Request
}](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	body := PT(new(T))
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		logger.WarnContext(ctx, "unreadable request body", "error", err)
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}

	body.Normalize()
	if err := body.Validate(); err != nil {
		logger.WarnContext(ctx, "request rejected", "error", err)
		var domainErr *dErrors.Error
		if !errors.As(err, &domainErr) {
			err = dErrors.New(dErrors.CodeBadRequest, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return (*T)(body), true
}
