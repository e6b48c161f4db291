package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "dealroom"

// Claims identify the acting party. They attribute audit events; they do not
// grant access to any particular deal.
type Claims struct {
	PartyID uuid.UUID `json:"party_id"`
	DealID  uuid.UUID `json:"deal_id"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for partyID. A non-positive expiration means 24h.
func GenerateJWT(secret string, partyID, dealID uuid.UUID, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		PartyID: partyID,
		DealID:  dealID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   partyID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.PartyID == uuid.Nil {
		return nil, fmt.Errorf("token carries no party")
	}
	return claims, nil
}
