// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling user. The API sits behind a gateway that
// authenticates users and forwards the internal user id in X-User-ID;
// Identity rejects requests without a well-formed id.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderUserID carries the authenticated internal user id.
	HeaderUserID = "X-User-ID"
	// HeaderVendorToken carries a vendor credential on settings calls.
	HeaderVendorToken = "X-Vendor-Token"

	userIDKey = "userID"
)

// Identity requires a UUID in X-User-ID and stores it for UserID.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		id, err := uuid.Parse(raw)
		if raw == "" || err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or malformed " + HeaderUserID,
			})
			return
		}
		c.Set(userIDKey, id.String())
		c.Next()
	}
}

// UserID returns the id stored by Identity, or "" outside it.
func UserID(c *gin.Context) string {
	return asString(c.Value(userIDKey))
}
