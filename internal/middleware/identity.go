// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const IdentityKey contextKey = "identity"

// Identity is the acting principal extracted from the request, used to
// attribute audit records. Zero value means anonymous.
type Identity struct {
	ID    string
	Email string
}

// identityClaims mirrors the access-token claims this service attributes
// actions to. Verification is the upstream gateway's job; here the token is
// only a carrier of actor identity.
type identityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// ExtractIdentity parses the bearer token, if any, and stores the actor
// identity in the request context. Requests without a token, or with a token
// that does not parse, proceed anonymously; this middleware never rejects.
func ExtractIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := identityFromHeader(r.Header.Get("Authorization"))
		if ident.ID != "" || ident.Email != "" {
			ctx := context.WithValue(r.Context(), IdentityKey, ident)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromHeader(header string) Identity {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Identity{}
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return Identity{}
	}

	claims := &identityClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}
	}

	return Identity{
		ID:    claims.Subject,
		Email: claims.Email,
	}
}

// GetIdentity extracts the actor identity from context.
func GetIdentity(ctx context.Context) Identity {
	if ident, ok := ctx.Value(IdentityKey).(Identity); ok {
		return ident
	}
	return Identity{}
}
