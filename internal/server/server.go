package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/export"
	"github.com/san-kum/episim/internal/observe"
	"github.com/san-kum/episim/internal/viz"
)

// DefaultTimeout bounds a single simulation request.
const DefaultTimeout = 10 * time.Second

// MaxSamples caps the length of a requested series.
const MaxSamples = 200000

// Server answers simulation requests. Every request resolves its own
// configuration and experiment; nothing is shared between requests except
// the read-only base configuration and registry.
type Server struct {
	reg     *experiment.Registry
	base    *config.Config
	timeout time.Duration
}

func New(reg *experiment.Registry, base *config.Config, timeout time.Duration) *Server {
	if base == nil {
		base = config.DefaultConfig()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{reg: reg, base: base, timeout: timeout}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/simulate", s.handleSimulate)
	mux.HandleFunc("GET /api/observations", s.handleObservations)
	mux.HandleFunc("GET /graph.txt", s.handleGraph)
	return mux
}

// Serve accepts connections on l until ctx ends, then shuts down.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
	}

	log.Printf("listening at %v", l.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(l)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) simulate(r *http.Request) (*experiment.Outcome, *config.Config, error) {
	cfg := s.base.Clone()
	if err := applyQuery(cfg, r.URL.Query()); err != nil {
		return nil, nil, err
	}
	if span := float64(cfg.Window.TMax) - float64(cfg.Window.TMin); cfg.Window.Resolution > 0 && span/cfg.Window.Resolution > MaxSamples {
		return nil, nil, dynamo.InvalidParam("resolution", cfg.Window.Resolution, fmt.Sprintf("window would exceed %d samples", MaxSamples))
	}
	expCfg, err := cfg.Experiment()
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(s.reg, expCfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	out, err := exp.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return out, cfg, nil
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	out, cfg, err := s.simulate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export.NewReport(out, cfg.Integrator))
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	out, cfg, err := s.simulate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := viz.PlotOptions{YMax: cfg.YMax, Theme: viz.ThemeMinimal}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("width")); err == nil {
		opts.Width = min(max(v, 10), 500)
	}
	if v, err := strconv.Atoi(q.Get("height")); err == nil {
		opts.Height = min(max(v, 4), 200)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, viz.Plot(out, opts))
}

type observationsResponse struct {
	Dataset   string             `json:"dataset"`
	Reference string             `json:"reference"`
	Epoch     string             `json:"epoch,omitempty"`
	Points    []observationPoint `json:"points"`
}

type observationPoint struct {
	Date  string  `json:"date"`
	Day   int     `json:"day"`
	Count float64 `json:"count"`
}

// handleObservations lists a built-in dataset. With ?epoch= the day offsets
// are aligned to that epoch instead of the dataset's reference date.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := config.DefaultDataset
	if q.Has("dataset") {
		name = q.Get("dataset")
	}
	if !slices.Contains(observe.Datasets(), name) {
		writeError(w, fmt.Errorf("unknown dataset %q", name))
		return
	}
	set, err := observe.Dataset(name, observe.Date{})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := observationsResponse{Dataset: set.Name, Reference: set.Reference.String()}
	points := set.Points()
	aligned := points
	if e := q.Get("epoch"); e != "" {
		epoch, err := observe.ParseDate(e)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Epoch = epoch.String()
		aligned = set.Align(epoch)
	}
	resp.Points = make([]observationPoint, len(points))
	for i, p := range points {
		resp.Points[i] = observationPoint{Date: set.DateOf(p).String(), Day: aligned[i].Day, Count: p.Count}
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusOf maps invalid input to 400, solver failures to 422 and timeouts
// to 504.
func statusOf(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case dynamo.IsNumerical(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var pe *dynamo.ParamError
	if errors.As(err, &pe) {
		resp.Field = pe.Field
	}
	writeJSON(w, statusOf(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
