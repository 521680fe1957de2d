package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"bilancio/internal/log"
)

// AccountHeader carries the account id when no JWT secret is configured.
const AccountHeader = "X-Account-ID"

type contextKey string

const accountKey contextKey = "account_id"

var (
	errMissingToken   = errors.New("missing token")
	errInvalidToken   = errors.New("invalid token")
	errMissingAccount = errors.New("missing account")
)

// Authenticator resolves the account of a request.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator verifies bearer tokens signed with secret. An empty secret
// trusts the X-Account-ID header instead, for local development.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// AccountID returns the account resolved by the auth middleware.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountKey).(string)
	return id
}

// ParseTokenFromRequest validates the bearer token and returns its subject.
func (a *Authenticator) ParseTokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errMissingAccount
	}
	return sub, nil
}

func (a *Authenticator) accountFor(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		id := strings.TrimSpace(r.Header.Get(AccountHeader))
		if id == "" {
			return "", errMissingAccount
		}
		return id, nil
	}
	return a.ParseTokenFromRequest(r)
}

// Middleware rejects requests without an account with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := a.accountFor(r)
		if err != nil {
			fields := log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path).
				WithError(err, log.ErrorTypeAuth)
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, accountID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldAccountID, accountID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
