package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	party, deal := uuid.New(), uuid.New()
	tok, err := GenerateJWT("secret", party, deal, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT("secret", tok)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.PartyID != party || claims.DealID != deal {
		t.Errorf("claims = %v/%v, want %v/%v", claims.PartyID, claims.DealID, party, deal)
	}
}

func TestParseJWTRejects(t *testing.T) {
	party := uuid.New()
	good, _ := GenerateJWT("secret", party, uuid.Nil, time.Hour)
	stale := Claims{PartyID: party, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, stale).SignedString([]byte("secret"))
	noParty, _ := GenerateJWT("secret", uuid.Nil, uuid.Nil, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{PartyID: party}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"no party", "secret", noParty},
		{"alg none", "secret", none},
		{"garbage", "secret", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.secret, tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}
