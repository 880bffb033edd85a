package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingClaims = errors.New("token missing required claims")
)

// Claims represents the verified identity carried by a Courier token
type Claims struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	jwt.RegisteredClaims
}

// Verifier decodes and validates signed tokens. It is a pure capability over
// a shared secret and a signing algorithm; Courier never issues tokens.
type Verifier struct {
	secret []byte
	method jwt.SigningMethod
}

// NewVerifier creates a verifier for the given secret and algorithm name
// (HS256, HS384 or HS512). Unknown algorithms fall back to HS256.
func NewVerifier(secret []byte, algorithm string) *Verifier {
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		method = jwt.SigningMethodHS256
	}
	return &Verifier{secret: secret, method: method}
}

// Verify validates a token string and returns its claims.
// Errors distinguish expiry, malformed/invalid-signature and missing claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing method to prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, ErrMissingClaims
	}

	// ExpiresAt is validated by the parser when present; a token without an
	// expiry is rejected because issuers always set one.
	if claims.ExpiresAt == nil {
		return nil, ErrMissingClaims
	}

	return claims, nil
}

// GenerateToken signs a token with the verifier's secret. Used by test
// tooling and local development; production tokens come from the issuer.
func (v *Verifier) GenerateToken(userID, walletAddress string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:        userID,
		WalletAddress: walletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(v.method, claims)
	return token.SignedString(v.secret)
}
