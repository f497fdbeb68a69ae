package principal

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
)

// AccessTokenIssuer mints and verifies bearer access tokens. It shares the
// claims style of TokenIssuer but signs with the bearer key, so neither
// credential validates as the other.
type AccessTokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewAccessTokenIssuer(signingKey string, ttl time.Duration) *AccessTokenIssuer {
	return &AccessTokenIssuer{signingKey: []byte(signingKey), ttl: ttl}
}

// IssueAccessToken mints a bearer token for the principal.
func (t *AccessTokenIssuer) IssueAccessToken(principalID id.PrincipalID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   principalID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken parses a bearer token and returns the authenticated
// principal id.
func (t *AccessTokenIssuer) VerifyAccessToken(raw string) (id.PrincipalID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	if err != nil || !token.Valid {
		return id.PrincipalID{}, derrors.Wrap(err, derrors.CodeForbidden, "invalid access token")
	}
	principalID, err := id.ParsePrincipalID(claims.Subject)
	if err != nil {
		return id.PrincipalID{}, derrors.Wrap(err, derrors.CodeForbidden, "invalid subject claim")
	}
	return principalID, nil
}
