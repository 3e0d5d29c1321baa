package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// TokenParser validates HMAC-signed access tokens issued by the auth service.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	if secret == "" {
		return &TokenParser{}
	}
	return &TokenParser{secret: []byte(secret)}
}

// ParseUserID validates tokenStr and returns the user it was issued to,
// taken from the "user_id" claim, falling back to "sub".
func (p *TokenParser) ParseUserID(tokenStr string) (string, error) {
	if p.secret == nil {
		return "", fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	if typ, ok := claims["typ"].(string); ok && typ != "access" {
		return "", fmt.Errorf("invalid token type")
	}
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("token has no subject")
}
