package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	credentialCookie = "jwt"
	ctxUserIDKey     = "userID"
)

// issueCredential signs a token for the identity and sets it as an
// http-only cookie. The acting identity for every guarded route comes from
// this credential, never from request body fields.
func (h *Handler) issueCredential(c *gin.Context, userID string) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(h.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return fmt.Errorf("sign credential: %w", err)
	}

	c.SetCookie(credentialCookie, signed, int(h.tokenTTL.Seconds()), "/", "", false, true)
	return nil
}

func (h *Handler) clearCredential(c *gin.Context) {
	c.SetCookie(credentialCookie, "", -1, "/", "", false, true)
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(credentialCookie)
		if raw == "" {
			if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				raw = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "credential required"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		c.Set(ctxUserIDKey, sub)
		c.Next()
	}
}

func actingUser(c *gin.Context) string {
	v, _ := c.Get(ctxUserIDKey)
	id, _ := v.(string)
	return id
}
