package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"physio-server/pkg/observability"
	obsmiddleware "physio-server/pkg/observability/middleware"
	"physio-server/services/physio-api/internal/config"
	middleware "physio-server/services/physio-api/internal/interfaces/httpserver/middlewares"
	"physio-server/services/physio-api/internal/interfaces/httpserver/routes"

	_ "physio-server/services/physio-api/docs/swagger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic. A failing
// Optional check is reported without failing readiness.
type ReadinessCheck struct {
	Name     string
	Optional bool
	Check    func(ctx context.Context) error
}

type HTTPServer struct {
	engine  *gin.Engine
	handler http.Handler
	config  *config.Config
	checks  []ReadinessCheck
	log     zerolog.Logger
}

func NewHTTPServer(
	cfg *config.Config,
	routeProvider *routes.Provider,
	obs *observability.Provider,
	checks []ReadinessCheck,
	log zerolog.Logger,
) *HTTPServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &HTTPServer{
		engine: gin.New(),
		config: cfg,
		checks: checks,
		log:    log.With().Str("component", "http").Logger(),
	}
	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.Tracing(obs.Tracer))
	server.engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	server.engine.Use(middleware.RequestLogger(log))

	server.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": cfg.ServiceName, "status": "ok"})
	})
	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	server.engine.GET("/readyz", server.readyz)
	server.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	server.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routeProvider.Register(server.engine)

	server.handler = obsmiddleware.HTTPMetrics(obs.Meter, cfg.ServiceName, metricRoute)(server.engine)
	return server
}

// Handler returns the fully wrapped HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx ends, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *HTTPServer) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			if !check.Optional {
				status = http.StatusServiceUnavailable
			}
			results[check.Name] = err.Error()
			s.log.Warn().Err(err).Str("check", check.Name).Msg("readiness check failed")
			continue
		}
		results[check.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// metricRoute keeps metric labels bounded: ids are collapsed to :id and the
// path is cut after four segments.
func metricRoute(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) > 4 {
		parts = parts[:4]
	}
	for i, part := range parts {
		if looksLikeID(part) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// looksLikeID treats long segments, and shorter ones of eight or more runes
// that contain a digit, as identifiers. Version prefixes such as v1 survive.
func looksLikeID(segment string) bool {
	if len(segment) > 24 {
		return true
	}
	if len(segment) < 8 {
		return false
	}
	for _, r := range segment {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
