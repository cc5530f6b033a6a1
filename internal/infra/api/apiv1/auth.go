package apiv1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
)

// ===== Bearer tokens from the identity provider =====

// UserClaims is the token shape the identity provider mints.
type UserClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
	log    *zerolog.Logger
}

func NewAuthenticator(secret, issuer string, logger *zerolog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, log: logging.OrNop(logger)}
}

var errNoToken = errors.New("no bearer token")

// Parse validates an HS256 token and maps it to a principal. The subject is the user id.
func (a *Authenticator) Parse(raw string) (model.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims UserClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return model.Anonymous(), err
	}
	if claims.Subject == "" {
		return model.Anonymous(), errors.New("token without subject")
	}
	role := model.RoleUser
	if model.Role(claims.Role) == model.RoleAdmin {
		role = model.RoleAdmin
	}
	return model.Principal{UserID: claims.Subject, Email: claims.Email, Name: claims.Name, Role: role}, nil
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errNoToken
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(tok), nil
}

// Identify attaches the caller principal to the request context. A missing token leaves the
// caller anonymous; a present but invalid token is rejected so clients notice expiry.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearer(r)
		if errors.Is(err, errNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		p, err := a.Parse(raw)
		if err != nil {
			logging.With(r.Context(), a.log).Debug().Err(err).Msg("rejected bearer token")
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
			return
		}
		ctx := WithPrincipal(r.Context(), p)
		ctx = logging.WithUserID(ctx, p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the anonymous principal when none was attached.
func PrincipalFrom(ctx context.Context) model.Principal {
	p, _ := ctx.Value(principalKey{}).(model.Principal)
	return p
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()).IsAnonymous() {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p.IsAnonymous() {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
