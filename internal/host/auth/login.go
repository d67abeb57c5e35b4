package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edirooss/selva-engine/internal/env"
)

// Login authenticates against the single admin credential and mints a
// session with a fresh CSRF token. There is no user store to speak of —
// this engine has exactly one administrative principal.
func Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	userMatch := subtle.ConstantTimeCompare([]byte(req.Username), []byte(env.Admin.Username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(req.Password), []byte(env.Admin.Password)) == 1
	if !userMatch || !passMatch {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
		return
	}

	csrf := uuid.NewString()
	session := sessions.Default(c)
	session.Set("uid", req.Username)
	session.Set("last_touch", time.Now().Unix())
	session.Set("csrf", csrf)
	if err := session.Save(); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"csrf_token": csrf})
}

// Logout clears the admin session.
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{
		Path:     "/api",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	_ = session.Save()
	c.Status(http.StatusNoContent)
}

// Me reports the authenticated principal.
func Me(c *gin.Context) {
	p := GetPrincipal(c)
	if p == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "credential_type": p.Credential.String()})
}
