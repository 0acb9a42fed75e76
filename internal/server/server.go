// Package server exposes the assignment engine and presence services over a
// JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zulandar/crewradar/internal/assign"
	"github.com/zulandar/crewradar/internal/heartbeat"
	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/presence"
	"github.com/zulandar/crewradar/internal/roster"
	"github.com/zulandar/crewradar/internal/rules"
)

// RequestTypeLister lists a project's customer request types.
type RequestTypeLister interface {
	RequestTypes(ctx context.Context, projectID string) ([]jira.RequestType, error)
}

// DirectoryChecker verifies the presence directory credentials.
type DirectoryChecker interface {
	Check(ctx context.Context) error
}

// Deps are the services the API serves.
type Deps struct {
	Engine       *assign.Engine
	Heartbeat    *heartbeat.Service
	Roster       *roster.Service
	Presence     *presence.Store
	Rules        *rules.Store
	RequestTypes RequestTypeLister
	// Directory is nil when presence sync is disabled.
	Directory DirectoryChecker
}

func (d Deps) validate() error {
	switch {
	case d.Engine == nil:
		return fmt.Errorf("server: engine is required")
	case d.Heartbeat == nil:
		return fmt.Errorf("server: heartbeat service is required")
	case d.Roster == nil:
		return fmt.Errorf("server: roster is required")
	case d.Presence == nil:
		return fmt.Errorf("server: presence store is required")
	case d.Rules == nil:
		return fmt.Errorf("server: rules store is required")
	}
	return nil
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Deps Deps
	Port int
	Out  io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if err := opts.Deps.validate(); err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.Deps, gin.Logger())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "CrewRadar API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered. Extra
// middleware runs after recovery and request tagging.
func NewRouter(d Deps, middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	router.Use(middleware...)
	registerRoutes(router, d)
	return router
}

// requestID tags every request with an X-Request-ID, keeping the caller's.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
