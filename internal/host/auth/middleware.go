package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/edirooss/selva-engine/internal/env"
)

// sessionTTLSeconds bounds how long a session stays valid without a
// touching request before Authentication starts rejecting it.
const sessionTTLSeconds = 15 * 60

// Authentication allows a request through on valid Basic credentials or a
// live admin session, attaching a Principal either way. Responds 401
// otherwise.
func Authentication(c *gin.Context) {
	if isBasicAuthenticated(c) || isSessionAuthenticated(c) {
		c.Next()
		return
	}
	c.AbortWithStatus(http.StatusUnauthorized)
}

func isBasicAuthenticated(c *gin.Context) bool {
	user, pass, ok := c.Request.BasicAuth()
	if !ok {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(env.Admin.Username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(env.Admin.Password)) == 1
	if userMatch && passMatch {
		SetPrincipal(c, &Principal{Credential: Basic, ID: user})
		return true
	}
	return false
}

func isSessionAuthenticated(c *gin.Context) bool {
	session := sessions.Default(c)
	uid, _ := session.Get("uid").(string)
	if uid == "" {
		return false
	}

	now := time.Now().Unix()
	lastTouch, _ := session.Get("last_touch").(int64)
	if lastTouch == 0 || now-lastTouch > sessionTTLSeconds {
		session.Set("last_touch", now)
		_ = session.Save()
	}

	SetPrincipal(c, &Principal{Credential: Session, ID: uid})
	return true
}

// ValidateSessionCSRF rejects mutating requests from a session-authenticated
// caller unless X-CSRF-Token matches the token minted at login. Basic-auth
// callers (scripts, not browsers) are exempt — there is no cookie for a
// cross-site request to ride on.
func ValidateSessionCSRF(c *gin.Context) {
	if p := GetPrincipal(c); p == nil || p.Credential != Session {
		c.Next()
		return
	}

	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		c.Next()
		return
	}

	want, _ := sessions.Default(c).Get("csrf").(string)
	got := c.GetHeader("X-CSRF-Token")
	if want == "" || got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid csrf token"})
		return
	}
	c.Next()
}
