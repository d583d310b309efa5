package authtoken_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/authtoken"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := authtoken.Issue("user-1", secret, authtoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	userID, err := authtoken.ParseUserClaims(tok, secret)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := authtoken.Issue("user-1", []byte("right-secret"), authtoken.Claims{})
	require.NoError(t, err)

	_, err = authtoken.ParseUserClaims(tok, []byte("wrong-secret"))
	require.Error(t, err)
	var pd errtypes.IsPermissionDenied
	require.ErrorAs(t, err, &pd)
}

func TestParseWithoutSecretIsConfigMissing(t *testing.T) {
	_, err := authtoken.ParseUserClaims("anything", nil)
	require.Error(t, err)
	var cm errtypes.IsConfigMissing
	require.ErrorAs(t, err, &cm)
}
