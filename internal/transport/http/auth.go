package http

import (
	"context"
	"net/http"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/service"

	"github.com/google/uuid"
)

type userKey struct{}

// RequireAuth rejects requests without a valid session and stores the
// caller's profile in the request context.
func RequireAuth(auth service.AuthService, cookies CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.token(r)
			if token == "" {
				writeError(w, r, domain.ErrUnauthenticated)
				return
			}
			user, err := auth.CheckAuth(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), userKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (*dto.PublicUser, bool) {
	u, ok := ctx.Value(userKey{}).(*dto.PublicUser)
	return u, ok && u != nil
}

func currentUserID(r *http.Request) (domain.UserID, error) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	return id, nil
}
