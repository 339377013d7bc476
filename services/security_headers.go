package services

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// SecurityConfig contains security header configuration
type SecurityConfig struct {
	CSPPolicy         string
	HSTSMaxAge        int64
	HSTSIncludeSub    bool
	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
}

// DefaultSecurityConfig returns headers suited to a JSON API that also serves uploads.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSPPolicy:         "default-src 'none'; img-src 'self' data: https:; frame-ancestors 'none'; base-uri 'none'",
		HSTSMaxAge:        31536000,
		HSTSIncludeSub:    true,
		FrameOptions:      "DENY",
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "camera=(), microphone=(), geolocation=(), payment=()",
	}
}

// SecurityHeaders returns a middleware setting the configured response headers.
func SecurityHeaders(config *SecurityConfig) fiber.Handler {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSub {
			hsts += "; includeSubDomains"
		}
	}
	return func(c *fiber.Ctx) error {
		if config.CSPPolicy != "" {
			c.Set("Content-Security-Policy", config.CSPPolicy)
		}
		if hsts != "" {
			c.Set("Strict-Transport-Security", hsts)
		}
		if config.FrameOptions != "" {
			c.Set("X-Frame-Options", config.FrameOptions)
		}
		if config.ReferrerPolicy != "" {
			c.Set("Referrer-Policy", config.ReferrerPolicy)
		}
		if config.PermissionsPolicy != "" {
			c.Set("Permissions-Policy", config.PermissionsPolicy)
		}
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Permitted-Cross-Domain-Policies", "none")
		return c.Next()
	}
}
