// Command selvad hosts a single in-memory engine behind an HTTP command
// surface: object.*, subscriptions.*, and modify. Wiring follows the usual
// zap/gin shape: structured request logging, recovery, session auth, and
// a graceful-shutdown http.Server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/selva-engine/internal/core/engine"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
	"github.com/edirooss/selva-engine/internal/core/subid"
	"github.com/edirooss/selva-engine/internal/core/subs"
	"github.com/edirooss/selva-engine/internal/env"
	"github.com/edirooss/selva-engine/internal/host/auth"
	"github.com/edirooss/selva-engine/internal/host/dispatch"
	"github.com/edirooss/selva-engine/internal/host/events"
	"github.com/edirooss/selva-engine/internal/host/snapshot"
	"github.com/edirooss/selva-engine/internal/rpnbuilder"
	"github.com/edirooss/selva-engine/pkg/jsonx"
	"github.com/edirooss/selva-engine/redis"
)

// ZapLogger logs one structured line per request, leveled by response
// status.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	binding.EnableDecoderDisallowUnknownFields = true

	repo := redis.NewRepository(log, env.RedisAddr, env.RedisDB)
	defer repo.Close()

	eventLog := log.Named("events.fired")
	publish := events.New(log, env.EventQueueDepth, env.EventWorkerCount, func(ev subs.Event) {
		eventLog.Info("subscription fired",
			zap.String("subscription_id", ev.SubscriptionID),
			zap.String("node", ev.Node.String()),
			zap.Uint32("flag", uint32(ev.Flag)),
			zap.String("field", ev.Field),
		)
	})
	defer publish.Close()

	eng := engine.New(publish)
	snaps := snapshot.New(log, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := snaps.SaveAll(ctx, eng); err != nil {
		log.Warn("startup snapshot probe failed", zap.Error(err))
	}
	cancel()

	d := dispatch.New(eng)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())
	r.Use(secure.New(secure.Options{
		SSLRedirect:           false,
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ContentSecurityPolicy: "default-src 'none'",
	}))

	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization", "X-CSRF-Token"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(env.SessionSecret))
	store.Options(sessions.Options{Path: "/api", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("selva_session", store))

	r.Use(ZapLogger(log))

	r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	r.POST("/api/login", auth.Login)
	r.POST("/api/logout", auth.Authentication, auth.Logout)
	r.GET("/api/me", auth.Authentication, auth.Me)

	api := r.Group("/api", auth.Authentication, auth.ValidateSessionCSRF)

	api.GET("/object/:key/exists", func(c *gin.Context) {
		key, ok := parseNodeID(c, "key")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": d.ObjectExists(key, c.Query("path"))})
	})

	api.GET("/object/:key/type", func(c *gin.Context) {
		key, ok := parseNodeID(c, "key")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": d.ObjectType(key, c.Query("path"))})
	})

	api.GET("/object/:key/len", func(c *gin.Context) {
		key, ok := parseNodeID(c, "key")
		if !ok {
			return
		}
		n, err := d.ObjectLen(key, c.Query("path"))
		if !writeResult(c, n, err) {
			return
		}
	})

	api.GET("/object/:key", func(c *gin.Context) {
		key, ok := parseNodeID(c, "key")
		if !ok {
			return
		}
		paths := c.QueryArray("path")
		v, err := d.ObjectGet(key, paths...)
		writeResult(c, v, err)
	})

	api.DELETE("/object/:key", func(c *gin.Context) {
		key, ok := parseNodeID(c, "key")
		if !ok {
			return
		}
		n, err := d.ObjectDel(key, c.Query("path"))
		writeResult(c, n, err)
	})

	api.PUT("/object/:key", func(c *gin.Context) {
		key, ok := parseNodeID(c, "key")
		if !ok {
			return
		}
		var req struct {
			Path   string   `json:"path"`
			Type   string   `json:"type"`
			Values []string `json:"values"`
		}
		if err := decodeStrict(c, &req); err != nil {
			return
		}
		if len(req.Type) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "type must be a single character"})
			return
		}
		n, err := d.ObjectSet(key, req.Path, req.Type[0], req.Values...)
		writeResult(c, n, err)
	})

	api.POST("/subscriptions/:sub", func(c *gin.Context) {
		sub, ok := parseSubID(c, "sub")
		if !ok {
			return
		}
		var req struct {
			Direction string   `json:"direction"`
			Origin    string   `json:"origin"`
			Fields    []string `json:"fields"`
			Filter    string   `json:"filter"`
			// FieldEquals/FieldIntGreaterThan are shortcuts for the common
			// single-comparison predicate shapes, built via rpnbuilder
			// instead of requiring callers to hand-write a postfix program.
			// At most one of Filter, FieldEquals, FieldIntGreaterThan may be set.
			FieldEquals *struct {
				Field string `json:"field"`
				Want  string `json:"want"`
			} `json:"field_equals"`
			FieldIntGreaterThan *struct {
				Field string `json:"field"`
				N     int64  `json:"n"`
			} `json:"field_int_greater_than"`
		}
		if err := decodeStrict(c, &req); err != nil {
			return
		}
		origin, err := nodeid.ParseHex(req.Origin)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid origin"})
			return
		}

		filter := req.Filter
		switch {
		case req.FieldEquals != nil && req.FieldIntGreaterThan == nil && filter == "":
			filter = rpnbuilder.FieldEquals(req.FieldEquals.Field, req.FieldEquals.Want)
		case req.FieldIntGreaterThan != nil && req.FieldEquals == nil && filter == "":
			filter = rpnbuilder.FieldIntGreaterThan(req.FieldIntGreaterThan.Field, req.FieldIntGreaterThan.N)
		case req.FieldEquals != nil || req.FieldIntGreaterThan != nil:
			c.JSON(http.StatusBadRequest, gin.H{"message": "at most one of filter and the shortcut predicates may be set"})
			return
		}

		n, err := d.SubscriptionsAdd(sub, req.Direction, origin, req.Fields, filter)
		writeResult(c, n, err)
	})

	api.POST("/subscriptions/:sub/refresh", func(c *gin.Context) {
		sub, ok := parseSubID(c, "sub")
		if !ok {
			return
		}
		n, err := d.SubscriptionsRefresh(sub)
		writeResult(c, n, err)
	})

	api.GET("/subscriptions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"result": d.SubscriptionsList()})
	})

	api.GET("/subscriptions/:sub/debug", func(c *gin.Context) {
		sub, ok := parseSubID(c, "sub")
		if !ok {
			return
		}
		lines, err := d.SubscriptionsDebug(sub)
		writeResult(c, lines, err)
	})

	api.DELETE("/subscriptions/:sub", func(c *gin.Context) {
		sub, ok := parseSubID(c, "sub")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": d.SubscriptionsDel(sub)})
	})

	api.POST("/modify/:id", func(c *gin.Context) {
		id, ok := parseNodeID(c, "id")
		if !ok {
			return
		}
		var ops []dispatch.FieldOp
		if err := decodeStrict(c, &ops); err != nil {
			return
		}
		target, err := d.Modify(id, ops)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": target.String()})
	})

	httpserver := &http.Server{
		Addr:           env.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 15,
		ErrorLog:       zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	go func() {
		log.Info("running HTTP server", zap.String("addr", env.ListenAddr))
		if err := httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpserver.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := snaps.SaveAll(saveCtx, eng); err != nil {
		log.Error("final snapshot save failed", zap.Error(err))
	}
}

func parseNodeID(c *gin.Context, param string) (nodeid.ID, bool) {
	id, err := nodeid.ParseHex(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid node id"})
		return nodeid.Zero, false
	}
	return id, true
}

func parseSubID(c *gin.Context, param string) (subid.ID, bool) {
	id, err := subid.ParseHex(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid subscription id"})
		return subid.Zero, false
	}
	return id, true
}

// decodeStrict reads a capped, strictly-typed JSON body, rejecting unknown
// fields and any trailing content after the single JSON value.
func decodeStrict[T any](c *gin.Context, dst *T) error {
	if err := jsonx.ParseStrictJSONBody(c.Request, dst); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return err
	}
	return nil
}

// writeResult replies 200 with result, or maps err to a status via
// writeErr. Returns false when it wrote an error response.
func writeResult(c *gin.Context, result any, err error) bool {
	if err != nil {
		writeErr(c, err)
		return false
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
	return true
}

// writeErr maps the engine's taxonomy codes onto HTTP statuses.
func writeErr(c *gin.Context, err error) {
	c.Error(err)
	status := http.StatusInternalServerError
	switch selvaerr.CodeOf(err) {
	case selvaerr.ENoEnt:
		status = http.StatusNotFound
	case selvaerr.EExist:
		status = http.StatusConflict
	case selvaerr.EInval, selvaerr.ENameToLong, selvaerr.EIntType, selvaerr.ENan,
		selvaerr.EIllOpc, selvaerr.EIllOpn, selvaerr.EBadStk, selvaerr.EType,
		selvaerr.EBnds, selvaerr.ENpe, selvaerr.EDiv:
		status = http.StatusUnprocessableEntity
	case selvaerr.EOBig:
		status = http.StatusRequestEntityTooLarge
	}
	c.JSON(status, gin.H{"message": selvaerr.Message(err)})
}
