package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lsampedro/factumattic-console/internal/models"
)

// RequestIDMiddleware asigna un identificador a cada petición para poder
// correlacionar los logs de una misma operación.
func (api *API) RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// AuthMiddleware valida el token de sesión emitido por el proveedor de
// identidad y deja el usuario propietario en el contexto. Un token revocado
// por un cierre de sesión se rechaza igual que uno inválido.
func (api *API) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Missing session token"))
			c.Abort()
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(api.jwtSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid session token"))
			c.Abort()
			return
		}

		if claims.ID != "" && api.sessionRepo != nil && api.sessionRepo.IsRevoked(c.Request.Context(), claims.ID) {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Session has been closed"))
			c.Abort()
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("sessionID", claims.ID)
		if claims.ExpiresAt != nil {
			c.Set("sessionExpiry", claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// sessionExpiry retorna cuándo expira el token de la petición actual
func sessionExpiry(c *gin.Context) time.Time {
	if v, ok := c.Get("sessionExpiry"); ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
