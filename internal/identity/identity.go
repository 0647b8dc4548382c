// Package identity decides who a vote belongs to. Signed-in users vote as
// themselves; anonymous visitors get a long-lived opaque cookie token.
package identity

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"idees/internal/models"
)

const (
	DefaultCookieName = "visitor_id"
	cookieMaxAge      = 365 * 24 * 60 * 60

	// mintedKey holds a token minted earlier in the same request.
	mintedKey = "identity.visitor_id"
)

type Resolver struct {
	CookieName string
	Secure     bool
	Now        func() time.Time
}

func NewResolver(cookieName string, secure bool) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{CookieName: cookieName, Secure: secure, Now: time.Now}
}

// Resolve returns the voter id for the request, minting and setting a
// visitor cookie when an anonymous caller has none. A signed-in user's
// cookies are neither read nor written.
func (r *Resolver) Resolve(c *gin.Context, user *models.User) string {
	if user != nil {
		return user.ID
	}
	if id, ok := r.visitor(c); ok {
		return id
	}

	id := NewVisitorID(r.Now())
	c.Set(mintedKey, id)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(r.CookieName, id, cookieMaxAge, "/", "", r.Secure, true)
	return id
}

// Peek is the read-only form of Resolve. It never mints a token and reports
// false for an anonymous caller without one.
func (r *Resolver) Peek(c *gin.Context, user *models.User) (string, bool) {
	if user != nil {
		return user.ID, true
	}
	return r.visitor(c)
}

func (r *Resolver) visitor(c *gin.Context) (string, bool) {
	if v, ok := c.Get(mintedKey); ok {
		if id, _ := v.(string); id != "" {
			return id, true
		}
	}
	id, err := c.Cookie(r.CookieName)
	if err != nil || !IsVisitorID(id) {
		return "", false
	}
	return id, true
}

// NewVisitorID builds "anon_<unix millis>_<random>".
func NewVisitorID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("anon_%d_%s", now.UnixMilli(), random)
}

// visitorShape also admits tokens minted by older clients, whose random
// part was base36. The whole token stays well under the 64 character
// voter_id column.
var visitorShape = regexp.MustCompile(`^anon_[0-9]{1,20}_[0-9a-z]{1,32}$`)

// IsVisitorID reports whether id has the shape of a minted visitor token.
// Cookies failing it are ignored and replaced.
func IsVisitorID(id string) bool {
	return visitorShape.MatchString(id)
}
