// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package api serves the diagnostics of the daemon over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cilium/meshrib/pkg/fib"
	"github.com/cilium/meshrib/pkg/logging"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "api")

const shutdownTimeout = 5 * time.Second

// FIBView gives access to the routes installed in the kernel.
type FIBView interface {
	Installed() fib.View
}

// Server is the diagnostics HTTP server.
type Server struct {
	addr     string
	manager  *rib.Manager
	fib      FIBView
	gatherer prometheus.Gatherer
	handler  http.Handler
}

// NewServer returns a server listening on addr once run. fibView may be nil
// when routes are not installed.
func NewServer(addr string, m *rib.Manager, fibView FIBView, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		addr:     addr,
		manager:  m,
		fib:      fibView,
		gatherer: gatherer,
	}
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	s.handler = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RegisterRoutes registers the diagnostics routes with the provided Router.
func (s *Server) RegisterRoutes(r *mux.Router) {
	for _, route := range []struct {
		name, method, path string
		handler            http.HandlerFunc
	}{
		{"get_rib", "GET", "/v1/rib", s.getRIB},
		{"get_rib_route", "GET", "/v1/rib/{addr:.+}", s.getRoute},
		{"get_fib", "GET", "/v1/fib", s.getFIB},
	} {
		r.Handle(route.path, route.handler).Methods(route.method).Name(route.name)
	}

	if s.gatherer != nil {
		r.Path("/metrics").Methods("GET").Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func writeText(w http.ResponseWriter, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

func (s *Server) getRIB(w http.ResponseWriter, _ *http.Request) {
	var (
		buf bytes.Buffer
		err error
	)
	s.manager.Read(func(r *rib.RIB) {
		err = r.Dump(&buf)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeText(w, &buf)
}

// getRoute looks up an exact destination when given a prefix and the longest
// matching destination when given an address.
func (s *Server) getRoute(w http.ResponseWriter, req *http.Request) {
	arg := mux.Vars(req)["addr"]

	var lookup func(r *rib.RIB) (rib.EntrySnapshot, bool)
	if addr, err := netip.ParseAddr(arg); err == nil {
		lookup = func(r *rib.RIB) (rib.EntrySnapshot, bool) { return r.Match(addr) }
	} else if prefix, err := tables.ParsePrefix(arg); err == nil {
		lookup = func(r *rib.RIB) (rib.EntrySnapshot, bool) { return r.Lookup(prefix) }
	} else {
		http.Error(w, fmt.Sprintf("invalid address or prefix %q", arg), http.StatusBadRequest)
		return
	}

	var (
		entry rib.EntrySnapshot
		found bool
	)
	s.manager.Read(func(r *rib.RIB) {
		entry, found = lookup(r)
	})
	if !found {
		http.Error(w, fmt.Sprintf("no route to %s", arg), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, entry)
	for _, p := range entry.Paths {
		marker := " "
		if p.Best {
			marker = "*"
		}
		fmt.Fprintf(&buf, "%s %s\n", marker, p)
	}
	writeText(w, &buf)
}

func (s *Server) getFIB(w http.ResponseWriter, _ *http.Request) {
	if s.fib == nil {
		http.Error(w, "routes are not installed", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := s.fib.Installed().Dump(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeText(w, &buf)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithField(logfields.Address, s.addr).Info("Serving diagnostics API")

	select {
	case err := <-errCh:
		return fmt.Errorf("diagnostics API stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
