package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"smartattend/internal/auth"
	"smartattend/internal/capture"
	"smartattend/internal/config"
	"smartattend/internal/credstore"
	"smartattend/internal/faceclient"
	"smartattend/internal/identity"
	"smartattend/internal/ledger"
	"smartattend/internal/logging"
	"smartattend/internal/matcher"
	"smartattend/internal/notify"
	"smartattend/internal/session"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "rebuild the face encodings cache from the reference image directory")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogFile)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log, *rebuild); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg config.App, log *logrus.Logger, rebuild bool) error {
	ctx := context.Background()

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if err := face.Health(ctx); err != nil {
		log.WithError(err).Warn("face service not available at startup")
	}

	ids := identity.NewStore()
	if rebuild {
		rebuildEncodings(ctx, cfg, ids, face, log)
	} else if err := ids.Load(cfg.EncodingsFile); err != nil {
		log.WithError(err).Warn("encodings cache unavailable, rebuilding")
		rebuildEncodings(ctx, cfg, ids, face, log)
	}
	log.WithField("identities", ids.Len()).Info("identity store ready")

	creds := credstore.New(cfg.UsersFile, cfg.TokensFile)
	led := ledger.New(cfg.AttendanceFile)

	var sender notify.Sender
	if fcm, err := notify.NewFCM(ctx, cfg.FirebaseCredentials, cfg.NotifyTopic); err != nil {
		log.WithError(err).Warn("firebase not configured, notifications will be logged only")
		sender = &notify.LogSender{Log: log}
	} else {
		sender = fcm
	}

	newCamera := func() capture.Source { return capture.NewHTTPCamera(cfg.CameraSnapshotURL) }

	svc := session.NewService(
		creds, led, sender, log, newCamera,
		matcher.NewFaceResolver(face, ids, cfg.MatchThreshold),
		matcher.NewQRResolver(),
		cfg.FrameInterval, cfg.QRCodesDir,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		oracleHealthy := face.Health(c.Request.Context()) == nil
		status := http.StatusOK
		if !oracleHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "face_service": oracleHealthy, "identities": ids.Len()})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
			Role     string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sess, ok := svc.Login(req.Username, req.Password, req.Role)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}

		token, exp, err := auth.Issue(sess.Username, sess.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": exp.Unix(),
			"role":       sess.Role,
		})
	})

	authGroup := r.Group("/v1", auth.SessionAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/attendance", func(c *gin.Context) {
		claims := auth.FromContext(c)
		records, err := svc.Attendance(session.Session{Username: claims.Username, Role: claims.Role})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			Mode string `json:"mode" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		scan, err := svc.StartScan(req.Mode)
		switch {
		case errors.Is(err, session.ErrScanActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, session.ErrUnknownMode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"scan_id": scan.ID()})
	})

	authGroup.GET("/scans/:id", func(c *gin.Context) {
		status, ok := svc.Scan(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown scan"})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	authGroup.DELETE("/scans/:id", func(c *gin.Context) {
		if !svc.Cancel(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown scan"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	})

	authGroup.POST("/qrcodes", func(c *gin.Context) {
		var req struct {
			Identity string `json:"identity" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path, err := svc.GenerateQR(req.Identity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"path": path})
	})

	adminGroup := authGroup.Group("", auth.RequireAdmin())

	adminGroup.POST("/export", func(c *gin.Context) {
		var req struct {
			Path string `json:"path" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.FromContext(c)
		if err := svc.ExportPDF(session.Session{Username: claims.Username, Role: claims.Role}, req.Path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": req.Path})
	})

	adminGroup.POST("/notifications", func(c *gin.Context) {
		var req struct {
			Title     string `json:"title" binding:"required"`
			Body      string `json:"body" binding:"required"`
			Recipient string `json:"recipient"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Notify(c.Request.Context(), req.Title, req.Body, req.Recipient); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}

	log.Info("server exited")
	return nil
}

// rebuildEncodings re-enrolls every reference image and refreshes the cache.
// A failure here is not fatal: the server still runs, the face matcher just
// has nothing to match against.
func rebuildEncodings(ctx context.Context, cfg config.App, ids *identity.Store, face *faceclient.Client, log *logrus.Logger) {
	if err := ids.Rebuild(ctx, cfg.KnownFacesDir, face, log); err != nil {
		log.WithError(err).Warn("encodings rebuild failed, matcher will have no identities")
		return
	}
	if err := ids.Persist(cfg.EncodingsFile); err != nil {
		log.WithError(err).Warn("could not persist encodings cache")
	}
}
