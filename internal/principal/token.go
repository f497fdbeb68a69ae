package principal

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
)

// TokenIssuer mints and verifies impersonation session credentials. The
// signing key is dedicated: an impersonation credential can never validate as
// a bearer token and vice versa. The credential travels in its own header
// (X-Impersonation-Token), never mixed with Authorization.
type TokenIssuer struct {
	signingKey []byte
}

func NewTokenIssuer(signingKey string) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey)}
}

type sessionClaims struct {
	SessionID  string `json:"sid"`
	OperatorID string `json:"operator"`
	jwt.RegisteredClaims
}

// Issue mints a credential bound to the session and its expiry.
func (t *TokenIssuer) Issue(session *ImpersonationSession) (string, error) {
	claims := sessionClaims{
		SessionID:  session.ID.String(),
		OperatorID: session.OperatorID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.OperatorID.String(),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign impersonation token: %w", err)
	}
	return signed, nil
}

// Verify parses a credential and returns the session and operator ids.
func (t *TokenIssuer) Verify(raw string) (id.SessionID, id.PrincipalID, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	if err != nil || !token.Valid {
		return id.SessionID{}, id.PrincipalID{}, derrors.Wrap(err, derrors.CodeForbidden, "invalid impersonation credential")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return id.SessionID{}, id.PrincipalID{}, derrors.Wrap(err, derrors.CodeForbidden, "invalid session id claim")
	}
	operatorID, err := id.ParsePrincipalID(claims.OperatorID)
	if err != nil {
		return id.SessionID{}, id.PrincipalID{}, derrors.Wrap(err, derrors.CodeForbidden, "invalid operator id claim")
	}
	return sessionID, operatorID, nil
}
