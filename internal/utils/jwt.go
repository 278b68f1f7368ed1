package utils // package utils provides token signing and password hashing

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

    "github.com/iliyamo/ebank-backoffice/internal/model"
)

// ErrInvalidToken is returned by Parse for any token that is malformed,
// expired, or signed with another key or algorithm.
var ErrInvalidToken = errors.New("invalid token")

// accessClaims is the wire form of model.ClaimSet.  sub carries the
// username and scope the space separated role names.
type accessClaims struct {
    Scope string `json:"scope"`
    jwt.RegisteredClaims
}

// JWTSigner turns claim sets into HS512 signed bearer tokens and back.
type JWTSigner struct {
    secret []byte
}

func NewJWTSigner(secret string) JWTSigner {
    return JWTSigner{secret: []byte(secret)}
}

// Sign serialises the claim set into a compact JWT.
func (s JWTSigner) Sign(cs model.ClaimSet) (string, error) {
    claims := accessClaims{
        Scope: cs.Scope,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   cs.Subject,
            IssuedAt:  jwt.NewNumericDate(cs.IssuedAt),
            ExpiresAt: jwt.NewNumericDate(cs.ExpiresAt),
        },
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
    signed, err := t.SignedString(s.secret)
    if err != nil {
        return "", fmt.Errorf("sign token: %w", err)
    }
    return signed, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
// Only HS512 is accepted.
func (s JWTSigner) Parse(raw string) (model.ClaimSet, error) {
    var claims accessClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return s.secret, nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return model.ClaimSet{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
    }
    cs := model.ClaimSet{Subject: claims.Subject, Scope: claims.Scope}
    if claims.IssuedAt != nil {
        cs.IssuedAt = claims.IssuedAt.Time.UTC()
    }
    if claims.ExpiresAt != nil {
        cs.ExpiresAt = claims.ExpiresAt.Time.UTC()
    }
    return cs, nil
}

// TokenLifetime reports how long a claim set is valid, rounded to seconds.
func TokenLifetime(cs model.ClaimSet) time.Duration {
    return cs.ExpiresAt.Sub(cs.IssuedAt).Round(time.Second)
}
