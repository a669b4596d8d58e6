package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one dependency the service cannot work without.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthCheck.
func CheckFunc(name string, check func(context.Context) error) HealthCheck {
	return checkFunc{name: name, check: check}
}

type checkFunc struct {
	name  string
	check func(context.Context) error
}

func (p checkFunc) Name() string                    { return p.name }
func (p checkFunc) Check(ctx context.Context) error { return p.check(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every check concurrently under a shared deadline. Any
// failure, panic or timeout reports 503.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.HealthChecks) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	results := make([]chan error, len(s.HealthChecks))
	var g errgroup.Group
	for i, hc := range s.HealthChecks {
		results[i] = make(chan error, 1)
		g.Go(func() error {
			results[i] <- runCheck(ctx, hc)
			return nil
		})
	}

	resp := healthResponse{Status: "healthy", Components: make(map[string]componentStatus, len(s.HealthChecks))}
	for i, hc := range s.HealthChecks {
		var err error
		select {
		case err = <-results[i]:
		case <-ctx.Done():
			err = fmt.Errorf("health check timed out")
		}
		if err != nil {
			resp.Status = "unhealthy"
			resp.Components[hc.Name()] = componentStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		resp.Components[hc.Name()] = componentStatus{Status: "healthy"}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runCheck(ctx context.Context, p HealthCheck) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("health check panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
