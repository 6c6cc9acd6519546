package room

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

func (s *service) signConnectToken(sessionId string) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionId,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *service) parseConnectToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sessionId, ok := claims["session_id"].(string)
	if !ok || sessionId == "" {
		return "", errors.New("missing session id")
	}

	return sessionId, nil
}
