package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/service/auth"
)

// unauthenticated collapses credential failures into a single kind so
// the response never reveals whether the account exists.
func unauthenticated(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, auth.ErrInvalidCredentials):
		return domain.ErrUnauthenticated
	case errors.Is(err, domain.ErrUnavailable):
		return err
	}
	return domain.ErrUnauthenticated
}

type authContextKey string

type authInfo struct {
	UserID string
	Email  string
}

const contextKeyAuth authContextKey = "courseloop-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the request's credentials to an actor before
// invoking the handler. Both HTTP Basic (email/password) and bearer
// token sessions are accepted.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	scheme, err := authScheme(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "Access Denied")
		return req.Context(), authInfo{}, false
	}

	var user *domain.User
	switch scheme {
	case "basic":
		email, password, ok := req.BasicAuth()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Access Denied")
			return req.Context(), authInfo{}, false
		}
		user, err = r.auth.Authenticate(req.Context(), email, password)
	default:
		token, _ := bearerToken(req.Header.Get("Authorization"))
		user, err = r.auth.Authorize(req.Context(), token)
	}
	if err != nil {
		r.logger.Warn("credential validation failed", "scheme", scheme, "path", req.URL.Path)
		respondServiceError(w, unauthenticated(err), "")
		return req.Context(), authInfo{}, false
	}

	info := authInfo{UserID: user.ID, Email: user.Email}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func authScheme(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", errors.New("invalid authorization header format")
	}
	switch {
	case strings.EqualFold(parts[0], "Basic"):
		return "basic", nil
	case strings.EqualFold(parts[0], "Bearer"):
		return "bearer", nil
	}
	return "", errors.New("unsupported authorization scheme")
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
