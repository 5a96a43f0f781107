package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userIDKey is the gin context key holding the authenticated user id.
const userIDKey = "user_id"

// Auth authenticates the request. Two schemes are accepted:
//
//   - Authorization: Bearer <jwt>, HS256-signed with secret, user id in
//     the "sub" claim;
//   - X-API-Key: an opaque key whose hash scopes the caller's records.
//     No key registry is kept; the same key always maps to the same
//     tenant.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			userID, err := parseToken(strings.TrimPrefix(auth, "Bearer "), secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.Set(userIDKey, userID)
			c.Next()
			return
		}

		if key := c.GetHeader("X-API-Key"); key != "" {
			sum := sha256.Sum256([]byte(key))
			c.Set(userIDKey, "key_"+hex.EncodeToString(sum[:8]))
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
	}
}

// UserID returns the authenticated user id set by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func parseToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("missing subject")
	}

	return sub, nil
}
