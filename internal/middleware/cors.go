package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Decision is the outcome of an origin check.
type Decision struct {
	Allowed bool
	Reason  string
}

// OriginPolicy admits requests whose Origin header equals a single
// configured origin.
type OriginPolicy struct {
	allowed string
}

// NewOriginPolicy creates a policy for the given origin. An empty origin only
// admits requests that carry no Origin header.
func NewOriginPolicy(allowed string) OriginPolicy {
	return OriginPolicy{allowed: allowed}
}

// Allowed returns the configured origin.
func (p OriginPolicy) Allowed() string {
	return p.allowed
}

// Evaluate compares origin against the configured origin.
func (p OriginPolicy) Evaluate(origin string) Decision {
	if origin == p.allowed {
		return Decision{Allowed: true}
	}
	return Decision{
		Reason: fmt.Sprintf("CORS Error: el origen %q no coincide con la URL permitida en FRONTEND_URL (%q)", origin, p.allowed),
	}
}

// OriginError is returned for requests rejected by the origin policy.
type OriginError struct {
	Origin string
	Reason string
}

func (e *OriginError) Error() string {
	return e.Reason
}

// CORS rejects requests from origins the policy denies before they reach
// routing, then adds the usual CORS response headers for the allowed origin.
func CORS(policy OriginPolicy) fiber.Handler {
	var headers fiber.Handler
	if policy.Allowed() != "" {
		headers = cors.New(cors.Config{
			AllowOrigins: policy.Allowed(),
			AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		})
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if d := policy.Evaluate(origin); !d.Allowed {
			return &OriginError{Origin: origin, Reason: d.Reason}
		}
		if headers == nil {
			return c.Next()
		}
		return headers(c)
	}
}
