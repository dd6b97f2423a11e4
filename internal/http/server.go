package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/clipgate/internal/config"
	"github.com/jmehdipour/clipgate/internal/http/middleware"
	"github.com/jmehdipour/clipgate/internal/metrics"
	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmehdipour/clipgate/internal/service/report"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Registry interface {
	Register(ctx context.Context, name string) (model.Customer, error)
	Resolve(ctx context.Context, code string) (model.Customer, error)
	Get(ctx context.Context, id int64) (model.Customer, error)
	List(ctx context.Context) ([]model.Customer, error)
	Remove(ctx context.Context, id int64) error
	AccessArtifact(ctx context.Context, code string) ([]byte, error)
}

type Gate interface {
	AttemptSubmit(ctx context.Context, customerID int64, p model.Payload) (model.Submission, error)
	HasSubmission(ctx context.Context, customerID int64, period model.Period) (bool, error)
	CurrentPeriod() model.Period
}

type Reports interface {
	Report(ctx context.Context, q report.Query) (report.Result, error)
}

// History reads the submission projection.
type History interface {
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]model.SubmissionEvent, error)
}

type Sessions interface {
	Create(ctx context.Context) (string, error)
	Valid(ctx context.Context, token string) (bool, error)
	Drop(ctx context.Context, token string) error
	TTL() time.Duration
}

type Links interface {
	UploadURL(code string) string
}

// Deps are the collaborators the handlers call; cmd/serve wires the real ones.
type Deps struct {
	Registry Registry
	Gate     Gate
	Reports  Reports
	History  History
	Sessions Sessions
	Links    Links
	Redis    *redis.Client // rate limiter
	Log      *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Use(echoMid.RecoverWithConfig(echoMid.RecoverConfig{LogLevel: log.ERROR}), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		Limit:          cfg.RateLimit.Uploads,
		KeyPrefix:      "rl:upload:",
		Window:         cfg.RateLimit.Window,
		KeyFunc:        middleware.ParamKey("code"),
		RetryAfterHint: true,
	})
	authMW := middleware.SessionMiddleware(d.Sessions, cookieName(cfg.Admin))

	// public
	e.GET("/upload/:code", uploadPageHandler(d.Registry, d.Gate))
	e.POST("/upload/:code", uploadHandler(d.Registry, d.Gate, cfg.App.MaxUploadBytes), rlMW)

	// admin
	e.POST("/admin/login", loginHandler(d.Sessions, cfg.Admin, d.Log))
	admin := e.Group("/admin", authMW)
	admin.POST("/logout", logoutHandler(d.Sessions, cfg.Admin))
	admin.GET("/customers", listCustomersHandler(d.Registry, d.Links))
	admin.POST("/customers", createCustomerHandler(d.Registry, d.Links))
	admin.DELETE("/customers/:id", deleteCustomerHandler(d.Registry))
	admin.GET("/customers/:id/history", customerHistoryHandler(d.Registry, d.History))
	admin.GET("/qr/:code", qrHandler(d.Registry))
	admin.GET("/reports", reportHandler(d.Reports))

	return &Server{e: e, log: d.Log}
}

// echoLogLevel maps log.level onto echo's own logger, used by c.Logger().
func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
