/*
Package metrics implements HTTP services exposing monitoring data.
*/
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"go.uber.org/zap"
)

// Service serves metrics.
type Service struct {
	http        []*http.Server
	listeners   []net.Listener
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	started     atomic.Bool
}

// NewService configures logger and returns a new service instance.
func NewService(name string, httpServers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		http:        httpServers,
		config:      cfg,
		serviceType: name,
		log:         log.With(zap.String("service", name)),
	}
}

// Start runs http service with the exposed endpoint on the configured port.
// It returns an error if any of the configured addresses can't be listened on.
func (ms *Service) Start() error {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return nil
	}
	if !ms.started.CompareAndSwap(false, true) {
		ms.log.Info("service already started")
		return nil
	}
	for _, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			ms.closeListeners()
			ms.started.Store(false)
			return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
		}
		ms.listeners = append(ms.listeners, ln)
	}
	for i, srv := range ms.http {
		ms.log.Info("service is running", zap.String("endpoint", ms.listeners[i].Addr().String()))
		go func(srv *http.Server, ln net.Listener) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to start service", zap.String("endpoint", ln.Addr().String()), zap.Error(err))
			}
		}(srv, ms.listeners[i])
	}
	return nil
}

// Addresses returns the addresses the service actually listens on, it's
// empty if the service is not running.
func (ms *Service) Addresses() []string {
	res := make([]string, 0, len(ms.listeners))
	for _, ln := range ms.listeners {
		res = append(res, ln.Addr().String())
	}
	return res
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	if !ms.started.CompareAndSwap(true, false) {
		return
	}
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	ms.listeners = nil
	_ = ms.log.Sync()
}

func (ms *Service) closeListeners() {
	for _, ln := range ms.listeners {
		_ = ln.Close()
	}
	ms.listeners = nil
}
