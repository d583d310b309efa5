// Package authtoken turns a bearer token into the authenticated user id the
// access façade requires as a precondition. It is the one piece of
// "OAuth sign-in" the core still owns: verifying a session JWT issued by
// whatever external sign-in flow produced it, since a façade with no
// notion of an authenticated caller at all isn't a deployable system.
package authtoken

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

// Claims is the minimal session payload this package expects: a subject
// claim naming the user id, plus the registered expiry/issued-at claims
// the jwt library validates automatically.
type Claims struct {
	jwt.RegisteredClaims
}

// ParseUserClaims validates tokenString against secret (HS256) and returns
// the user id carried in its subject claim.
func ParseUserClaims(tokenString string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errtypes.ConfigMissing("auth token secret is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", errtypes.PermissionDenied(fmt.Sprintf("invalid token: %s", err))
	}
	if !token.Valid {
		return "", errtypes.PermissionDenied("invalid token")
	}

	userID := claims.Subject
	if userID == "" {
		return "", errtypes.PermissionDenied("token missing subject claim")
	}
	return userID, nil
}

// Issue mints a signed session token for userID carrying claims, with the
// subject overwritten by userID; its expiry is whatever claims sets. Used by whatever sign-in flow authenticates the user
// against the external identity provider before handing control back to
// this core.
func Issue(userID string, secret []byte, claims Claims) (string, error) {
	if len(secret) == 0 {
		return "", errtypes.ConfigMissing("auth token secret is not configured")
	}
	claims.Subject = userID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
