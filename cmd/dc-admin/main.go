package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/datacentricorg/datacentric-sub000/internal/backend/memdb"
	"github.com/datacentricorg/datacentric-sub000/internal/datasource"
	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/httpmw"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// ZapLogger logs every request through log, the way the rest of this
// module's services are observed.
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
			zap.String("request_id", httpmw.GetRequestID(c)),
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
	log = log.Named("dc-admin")

	binding.EnableDecoderDisallowUnknownFields = true

	store := memdb.New()
	ds, err := datasource.New(store, dcrecord.NewStructReflector(), log, datasource.Config{
		Name:     "dc-admin",
		Instance: datasource.InstanceDev,
	})
	if err != nil {
		log.Fatal("datasource construction failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())

	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(httpmw.RequestID())
	r.Use(ZapLogger(log))

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/api/dataset/:id", func(c *gin.Context) {
		idStr := c.Param("id")
		id, err := recordid.Parse(idStr)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
			return
		}

		rec, err := ds.LoadOrNil(c.Request.Context(), dcrecord.DataSetData{}, id)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "load failed"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": dcerr.ErrNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	r.GET("/api/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	addr := os.Getenv("DC_ADMIN_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	log.Info("listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
