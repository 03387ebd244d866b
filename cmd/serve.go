package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fenceline/zonewatch/internal/notify"
	"github.com/fenceline/zonewatch/internal/tracker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the position ingestion HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		zones, err := loadZones(ctx, st, cfg)
		if err != nil {
			return err
		}
		reg, err := buildRegistry(ctx, st, zones, cfg.Tracking.ToleranceDeg)
		if err != nil {
			return err
		}

		api := &apiServer{
			reg:      reg,
			notifier: notify.New(cfg.Notify),
			persist: func(zoneID, entityID string, state tracker.EntityState) error {
				return st.SaveEntityState(ctx, zoneID, entityID, state)
			},
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Int("zones", len(zones)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// apiServer holds the live trackers behind the HTTP API. Every state change
// is written through to the store so a restart resumes from the last
// known positions.
type apiServer struct {
	reg      *tracker.Registry
	notifier *notify.Notifier
	persist  func(zoneID, entityID string, state tracker.EntityState) error
}

func (s *apiServer) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/zones", s.handleListZones)
	r.Route("/zones/{zone}", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Post("/positions", s.handlePosition)
		r.Get("/entities/{entity}", s.handleEntity)
		r.Post("/entities/{entity}/unavailable", s.handleUnavailable)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleListZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"zones": s.reg.Zones()})
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zone")
	summary, err := s.reg.Summary(zoneID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"zone":        zoneID,
		"in_zone":     summary.InZone,
		"out_of_zone": summary.OutOfZone,
		"count":       summary.CountInZone,
	})
}

type positionRequest struct {
	EntityID  string   `json:"entity_id"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	AccuracyM *float64 `json:"accuracy,omitempty"`
}

type positionResponse struct {
	Classification    string  `json:"classification"`
	InZone            bool    `json:"in_zone"`
	DistanceM         float64 `json:"distance_m"`
	MembershipChanged bool    `json:"membership_changed"`
}

func (s *apiServer) handlePosition(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zone")

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.EntityID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity_id is required"})
		return
	}

	var (
		out   tracker.PositionUpdateOutcome
		state tracker.EntityState
	)
	err := s.reg.Do(zoneID, func(zt *tracker.ZoneTracker) error {
		var err error
		out, err = zt.UpdatePosition(req.EntityID, req.Lat, req.Lon, req.AccuracyM)
		if err != nil {
			return err
		}
		state, err = zt.Entity(req.EntityID)
		return err
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if err := s.persist(zoneID, req.EntityID, state); err != nil {
		zap.L().Error("persist entity state", zap.String("zone", zoneID), zap.String("entity", req.EntityID), zap.Error(err))
	}

	if out.MembershipChanged {
		evType := notify.EventExit
		if out.InZone {
			evType = notify.EventEnter
		}
		if err := s.notifier.Send(r.Context(), notify.Event{
			Type:      evType,
			Zone:      zoneID,
			Entity:    req.EntityID,
			Lat:       &req.Lat,
			Lon:       &req.Lon,
			DistanceM: &out.DistanceM,
		}); err != nil {
			zap.L().Error("webhook notify", zap.String("zone", zoneID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, positionResponse{
		Classification:    out.Classification.String(),
		InZone:            out.InZone,
		DistanceM:         out.DistanceM,
		MembershipChanged: out.MembershipChanged,
	})
}

func (s *apiServer) handleUnavailable(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zone")
	entityID := chi.URLParam(r, "entity")

	var (
		out   tracker.AvailabilityOutcome
		state tracker.EntityState
	)
	err := s.reg.Do(zoneID, func(zt *tracker.ZoneTracker) error {
		var err error
		out, err = zt.MarkUnavailable(entityID)
		if err != nil {
			return err
		}
		state, err = zt.Entity(entityID)
		return err
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if err := s.persist(zoneID, entityID, state); err != nil {
		zap.L().Error("persist entity state", zap.String("zone", zoneID), zap.String("entity", entityID), zap.Error(err))
	}

	if out.Changed {
		if err := s.notifier.Send(r.Context(), notify.Event{
			Type:   notify.EventUnavailable,
			Zone:   zoneID,
			Entity: entityID,
		}); err != nil {
			zap.L().Error("webhook notify", zap.String("zone", zoneID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changed":     out.Changed,
		"was_in_zone": out.WasInZone,
	})
}

type entityResponse struct {
	EntityID          string   `json:"entity_id"`
	Available         bool     `json:"available"`
	InZone            bool     `json:"in_zone"`
	Lat               *float64 `json:"lat,omitempty"`
	Lon               *float64 `json:"lon,omitempty"`
	AccuracyM         *float64 `json:"accuracy_m,omitempty"`
	BoundaryDistanceM *float64 `json:"boundary_distance_m,omitempty"`
}

func (s *apiServer) handleEntity(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zone")
	entityID := chi.URLParam(r, "entity")

	var state tracker.EntityState
	err := s.reg.Do(zoneID, func(zt *tracker.ZoneTracker) error {
		var err error
		state, err = zt.Entity(entityID)
		return err
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp := entityResponse{
		EntityID:          entityID,
		Available:         state.Available,
		InZone:            state.InZone,
		AccuracyM:         state.LastAccuracyM,
		BoundaryDistanceM: state.BoundaryDistanceM,
	}
	if state.LastPoint != nil {
		resp.Lat = &state.LastPoint.Lat
		resp.Lon = &state.LastPoint.Lon
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrZoneNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "zone not found"})
	case errors.Is(err, tracker.ErrUnknownEntity):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not tracked in this zone"})
	case errors.Is(err, tracker.ErrInvalidCoordinate):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "latitude and longitude must be finite"})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
