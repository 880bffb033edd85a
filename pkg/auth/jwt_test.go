package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("unit-test-secret")

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")

	token, err := v.GenerateToken("alice", "0xabc", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "alice" {
		t.Fatalf("expected user_id alice, got %s", claims.UserID)
	}
	if claims.WalletAddress != "0xabc" {
		t.Fatalf("expected wallet 0xabc, got %s", claims.WalletAddress)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")

	token, err := v.GenerateToken("alice", "", -time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := v.Verify(token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewVerifier([]byte("other-secret"), "HS256")
	v := NewVerifier(testSecret, "HS256")

	token, err := issuer.GenerateToken("alice", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := v.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")

	for _, token := range []string{"", "nonsense", "a.b.c"} {
		if _, err := v.Verify(token); err != ErrInvalidToken {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestVerifyMissingUserID(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := v.Verify(token); err != ErrMissingClaims {
		t.Fatalf("expected ErrMissingClaims, got %v", err)
	}
}

func TestVerifyMissingExpiry(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")

	claims := &Claims{UserID: "alice"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := v.Verify(token); err != ErrMissingClaims {
		t.Fatalf("expected ErrMissingClaims, got %v", err)
	}
}

func TestVerifyRejectsNonHMACAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")

	// alg=none tokens must never pass, regardless of claims
	claims := &Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := v.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewVerifierUnknownAlgorithmFallsBack(t *testing.T) {
	v := NewVerifier(testSecret, "RS256")

	token, err := v.GenerateToken("alice", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("fallback verifier should round-trip its own tokens: %v", err)
	}
}

func TestValidateServiceToken(t *testing.T) {
	if err := ValidateServiceToken("", "expected"); err != ErrMissingServiceToken {
		t.Fatalf("expected ErrMissingServiceToken, got %v", err)
	}
	if err := ValidateServiceToken("wrong", "expected"); err != ErrInvalidServiceToken {
		t.Fatalf("expected ErrInvalidServiceToken, got %v", err)
	}
	if err := ValidateServiceToken("expected", "expected"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestServiceAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ServiceAuthMiddleware("secret-token"))
	router.GET("/protected", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed", "secret-token", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret-token", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer secret-token", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tt.status {
			t.Fatalf("%s: expected status %d, got %d", tt.name, tt.status, w.Code)
		}
	}
}
