package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/srgjo27/tour_booking/internal/core/domain"
)

// Claims are the access-token claims issued by the identity service. The
// subject is the customer or staff id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Authenticate attaches the token's actor to the request context. Requests
// without a bearer token pass through anonymously; a token that is present
// but invalid is rejected.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing bearer token"})
			return
		}

		actor, err := a.parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: err.Error()})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (a *Authenticator) parse(raw string) (domain.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token has no subject")
	}

	// The system role belongs to in-process jobs and is never accepted
	// from a token.
	switch role := domain.Role(claims.Role); role {
	case domain.RoleCustomer, domain.RoleAdmin:
		return domain.Actor{ID: claims.Subject, Role: role}, nil
	case "":
		return domain.Actor{ID: claims.Subject, Role: domain.RoleCustomer}, nil
	default:
		return domain.Actor{}, errors.New("token role is not allowed")
	}
}

// IssueToken signs an access token. It backs the local dev tooling and the
// tests; production tokens come from the identity service.
func (a *Authenticator) IssueToken(subject string, role domain.Role, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	if a.issuer != "" {
		claims.Issuer = a.issuer
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: string(role), RegisteredClaims: claims})
	return t.SignedString(a.secret)
}
