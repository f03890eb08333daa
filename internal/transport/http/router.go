package http

import (
	"net/http"
	"strings"
	"time"

	"anichat/internal/observability/middleware"
	"anichat/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Auth        service.AuthService
	Messages    service.MessageService
	Cookies     CookieConfig
	FrontendURL string
	TrustProxy  bool
	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
	// Metrics serves /metrics. Nil uses the default prometheus registry.
	Metrics http.Handler
}

func NewRouter(o Options) http.Handler {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	metricsHandler := o.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	h := &handler{auth: o.Auth, messages: o.Messages, cookies: o.Cookies, trustProxy: o.TrustProxy}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)
	if origins := allowedOrigins(o.FrontendURL); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Trace-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(chimw.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metricsHandler)

	requireAuth := RequireAuth(o.Auth, o.Cookies)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/verify-otp", h.verifyOTP)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/reset-password", h.resetPassword)

		r.Group(func(pr chi.Router) {
			pr.Use(requireAuth)
			pr.Put("/update-profile", h.updateProfile)
			pr.Get("/check-auth", h.checkAuth)
		})
	})

	if o.Messages != nil {
		r.Group(func(pr chi.Router) {
			pr.Use(requireAuth)
			pr.Get("/api/v1/users", h.contacts)
			pr.Get("/api/v1/messages/{id}", h.conversation)
			pr.Post("/api/v1/messages/send/{id}", h.sendMessage)
		})
	}

	return r
}

// allowedOrigins splits a comma separated FRONTEND_URL. cors treats an empty
// list as "*", so the caller skips the middleware instead.
func allowedOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
