// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on interaction webhooks.
// Messaging platforms redeliver the same event when an acknowledgment is lost;
// the key (typically the platform message id) lets the engine answer a
// redelivery with the interaction it already recorded.
//
// The middleware only validates and annotates the request:
//   - the normalized key is available through GetIdempotencyKey
//   - a known key marks the request as a replay (IsReplay) and exempts it
//     from rate limiting
//
// Persistence stays behind the IdempotencyLookup function; the service layer
// is still the authority on replay and performs its own check inside the
// write transaction.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the delivery key.
const HeaderIdempotencyKey = "Idempotency-Key"

// ParamCompanyID is the route parameter naming the tenant.
const ParamCompanyID = "companyID"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// defaultKeyPattern accepts token characters plus the base64 alphabet used
// by platform message ids (wamid.HBgL...==).
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:=+/]+$`)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was already seen for the request's company.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses defaultKeyPattern.
	Pattern *regexp.Regexp
	// Now overrides the clock passed to the lookup (tests).
	Now func() time.Time
}

// IdempotencyLookup reports whether an unexpired key exists for companyID.
// Lookup errors never block the request.
type IdempotencyLookup func(ctx context.Context, companyID int64, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present.
// An invalid key is rejected with 400. When lookup finds the key for the
// company in the route, the request is flagged as a replay.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if companyID, ok := CompanyIDFromPath(c); ok {
				if exists, _ := lookup(c.Request.Context(), companyID, key, now().UTC()); exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}

// CompanyIDFromPath parses the :companyID route parameter. It returns false
// when the route has no such parameter or it is not a positive integer.
func CompanyIDFromPath(c *gin.Context) (int64, bool) {
	raw := c.Param(ParamCompanyID)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
