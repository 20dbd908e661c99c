package handler

import (
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller identity carried in the auth token. The token
// is issued by the external auth provider; this service only verifies
// and reads it.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// GetIdentity extracts the caller from the Authorization header or the
// session cookie.
func GetIdentity(req events.APIGatewayProxyRequest, jwtSecret string) (*Identity, error) {
	getHeader := func(name string) string {
		for k, v := range req.Headers {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}

	tokenString := ""
	authHeader := getHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if tokenString == "" {
		cookies := getHeader("Cookie")
		for _, part := range strings.Split(cookies, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "session_token=") {
				tokenString = strings.TrimPrefix(part, "session_token=")
				break
			}
		}
	}

	if tokenString == "" {
		return nil, fmt.Errorf("no authorization token found")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	id := &Identity{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id, nil
}

// GetUserID extracts just the caller's user id.
func GetUserID(req events.APIGatewayProxyRequest, jwtSecret string) (string, error) {
	id, err := GetIdentity(req, jwtSecret)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}
