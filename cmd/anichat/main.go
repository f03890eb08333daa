package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anichat/internal/config"
	"anichat/internal/email"
	"anichat/internal/events"
	"anichat/internal/imagestore"
	"anichat/internal/observability/logging"
	"anichat/internal/observability/metrics"
	"anichat/internal/service"
	impl "anichat/internal/service/impl"
	"anichat/internal/store"
	httpx "anichat/internal/transport/http"
	"anichat/pkg/db"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "anichat",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	logger.Info("starting service")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) DB
	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogLevel == "debug"})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(ctx); err != nil {
		logger.Error("automigrate", "error", err)
		os.Exit(1)
	}

	// 2) Collaborators
	var sender email.Sender = email.NewLogSender(logger)
	if cfg.Mail.Enabled() {
		sender = email.NewSMTPSender(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUser, cfg.Mail.SMTPPass, cfg.Mail.From)
	} else {
		logger.Warn("SMTP_HOST not set, emails are written to the log")
	}
	mailer, err := email.NewMailer(sender, cfg.OTPTTL)
	if err != nil {
		logger.Error("email templates", "error", err)
		os.Exit(1)
	}

	var images service.ImageStore = imagestore.Unconfigured{}
	if cfg.S3.Enabled() {
		s3store, err := imagestore.NewS3Store(ctx, cfg.S3)
		if err != nil {
			logger.Error("image store", "error", err)
			os.Exit(1)
		}
		images = s3store
	} else {
		logger.Warn("S3_BUCKET not set, image uploads will fail")
	}

	// 3) Services
	pw := impl.NewPasswordServiceArgon2id()
	ts, err := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		TTL:        cfg.SessionTTL,
		SigningKey: []byte(cfg.JWTSecret),
	})
	if err != nil {
		logger.Error("token service", "error", err)
		os.Exit(1)
	}
	as := impl.NewAuthServiceImpl(st, pw, ts, impl.NewOTPGenerator(), mailer, images, cfg.OTPTTL)
	as.Events = events.LogRecorder{Logger: logger}
	ms := impl.NewMessageServiceImpl(st, images)

	sweeper := &store.Sweeper{Store: st, Interval: cfg.SweepInterval, Logger: logger}
	go sweeper.Run(ctx)

	// 4) HTTP
	router := httpx.NewRouter(httpx.Options{
		Auth:     as,
		Messages: ms,
		Cookies: httpx.CookieConfig{
			Name:     cfg.CookieName,
			Secure:   cfg.CookieSecure,
			SameSite: cfg.CookieSameSite,
			MaxAge:   cfg.SessionTTL,
		},
		FrontendURL: cfg.FrontendURL,
		TrustProxy:  cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("anichat listening", "addr", srv.Addr, "issuer", cfg.Issuer)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}
}
