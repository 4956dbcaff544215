package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parcener/backend/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware wires member identity into HTTP handlers.
type Middleware struct {
	Tokens *Tokens
}

// RequireMember enforces that a valid member token is present before
// executing the next handler. When the route carries a {roomID} parameter
// the token must belong to that room.
func (m Middleware) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if errors.Is(err, errNoToken) {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				status := appErr.HTTPStatus
				if status == 0 {
					status = http.StatusUnauthorized
				}
				common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Tokens == nil {
		return r.Context(), errors.New("auth: tokens not configured")
	}
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	memberID, roomID, err := m.Tokens.Parse(token)
	if err != nil {
		return r.Context(), err
	}
	if param := chi.URLParam(r, "roomID"); param != "" {
		routeRoom, err := uuid.Parse(param)
		if err != nil {
			return r.Context(), common.NewAppError("NOT_FOUND", "room not found", http.StatusNotFound, err)
		}
		if routeRoom != roomID {
			return r.Context(), common.NewAppError("FORBIDDEN", "token does not belong to this room", httpStatusForbidden, nil)
		}
	}
	return common.WithMember(r.Context(), memberID, roomID), nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
