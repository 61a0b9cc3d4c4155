package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/thejerf/suture/v4"
)

const httpShutdownTimeout = 10 * time.Second

type HTTPService struct {
	Server *http.Server
}

func (h HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := h.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h HTTPService) String() string {
	return "http-server"
}

// NewSupervisor returns the root supervisor logging its events through l.
func NewSupervisor(l logger, services ...suture.Service) *suture.Supervisor {
	sup := suture.New("booktracker", suture.Spec{
		EventHook: func(e suture.Event) {
			switch e.Type() {
			case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
				l.Errorf("supervisor: %s", e)
			case suture.EventTypeBackoff:
				l.Warnf("supervisor: %s", e)
			default:
				l.Infof("supervisor: %s", e)
			}
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          httpShutdownTimeout + schedulerStopTimeout,
	})
	for _, svc := range services {
		sup.Add(svc)
	}
	return sup
}
