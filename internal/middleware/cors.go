package middleware

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stokmanager/internal/config"
)

// CORSMiddleware answers preflight requests with 200; scanner firmware
// treats any other status as a failure.
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:              cfg.AllowedMethods,
		AllowHeaders:              cfg.AllowedHeaders,
		ExposeHeaders:             cfg.ExposedHeaders,
		AllowCredentials:          cfg.AllowCredentials,
		MaxAge:                    time.Duration(cfg.MaxAge) * time.Second,
		OptionsResponseStatusCode: http.StatusOK,
	}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}

	return cors.New(corsConfig)
}

// PreflightHandler answers OPTIONS requests that carry no Origin header,
// which the CORS middleware passes through. Scanners send those.
func PreflightHandler(cfg *config.CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Status(http.StatusOK)
	}
}
