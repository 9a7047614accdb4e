package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const unknownClientIP = "unknown"

// ClientIP returns the address a device reported through its proxy: the
// first X-Forwarded-For entry, then X-Real-IP, else "unknown".
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	return unknownClientIP
}

// rateLimitKey prefers the proxy-reported address and falls back to the
// socket peer.
func rateLimitKey(c *gin.Context) string {
	if ip := ClientIP(c); ip != unknownClientIP {
		return ip
	}
	return c.ClientIP()
}
