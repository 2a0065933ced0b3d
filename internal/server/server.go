package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/chplink/internal/auth"
	"github.com/danmuck/chplink/internal/observability"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/session"
)

// Link is the session surface the status server drives.
type Link interface {
	ID() string
	State() session.State
	Stats() session.Stats
	Pending() []session.PendingSend
	Codec() *protocol.Codec
	HeartbeatPaused() bool
	PauseHeartbeat()
	ResumeHeartbeat()
	ResumeHeartbeatAfter(d time.Duration)
	Send(sender, cmd uint8, payload []byte, mode session.Mode) error
}

var _ Link = (*session.Session)(nil)

type Options struct {
	Addr        string
	CORSOrigins []string
	// Token guards the POST control routes. Empty leaves them open.
	Token string
}

// Server is the HTTP status and control surface for one link.
type Server struct {
	link     Link
	opts     Options
	router   *gin.Engine
	control  auth.Validator
	appeared time.Time
}

func New(link Link, opts Options) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", auth.HeaderToken},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		link:     link,
		opts:     opts,
		router:   r,
		control:  auth.FromConfig(opts.Token),
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) requireToken(c *gin.Context) {
	if err := s.control.Validate(auth.RequestToken(c.Request)); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
