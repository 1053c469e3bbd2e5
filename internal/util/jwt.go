package util

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contracttracker/internal/model"
)

// GenerateJWT signs an HS256 token carrying the actor's id, name and role.
func GenerateJWT(actor model.Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": actor.ID,
		"name":    actor.Name,
		"role":    actor.Role,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT validates token and extracts the actor.
func ParseJWT(tokenStr, secret string) (model.Actor, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Actor{}, err
	}

	if !token.Valid {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Actor{}, jwt.ErrTokenMalformed
	}

	// user_id 可能是字符串或数字，取决于签发方
	var actor model.Actor
	switch v := claims["user_id"].(type) {
	case string:
		actor.ID = v
	case float64:
		actor.ID = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return model.Actor{}, errors.Join(jwt.ErrTokenMalformed, errors.New("missing user_id claim"))
	}
	if actor.ID == "" {
		return model.Actor{}, errors.Join(jwt.ErrTokenMalformed, errors.New("empty user_id claim"))
	}
	actor.Name, _ = claims["name"].(string)
	actor.Role, _ = claims["role"].(string)
	return actor, nil
}

func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
