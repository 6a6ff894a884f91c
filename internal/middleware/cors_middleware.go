package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware configures Cross-Origin Resource Sharing for the API.
// clientURL is a comma-separated list of allowed origins. An empty value
// allows any origin without credentials, which suits local development.
func CORSMiddleware(clientURL string) gin.HandlerFunc {
	cfg := cors.Config{
		// Methods used by the web and mobile clients.
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},

		// "Authorization" carries the Firebase ID token.
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", RequestIDHeader},

		// Clients read the request ID back to quote it in support tickets.
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},

		// How long browsers may cache a preflight result.
		MaxAge: 12 * time.Hour,
	}

	// Split and trim the configured origins, ignoring empty entries.
	var origins []string
	for _, o := range strings.Split(clientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	if len(origins) == 0 {
		// Any origin, so credentials stay disabled.
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
