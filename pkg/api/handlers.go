package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/wntrblm/gemsettings/pkg/settings"
	"github.com/wntrblm/gemsettings/pkg/snapshot"
)

// maxBodyBytes bounds request bodies; a full JSON record is well under 1 KiB.
const maxBodyBytes = 16 << 10

// handleHealth handles GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.manager.ReadRaw()
	if err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		sendError(w, "settings store unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// load wraps Manager.Load with metrics
func (s *Server) load() (settings.Record, bool, error) {
	start := time.Now()
	rec, valid, err := s.manager.Load()
	s.metrics.RecordSettingsOperation("load", err == nil, time.Since(start))
	if err == nil && !valid {
		s.metrics.RecordInvalidLoad()
	}
	return rec, valid, err
}

// handleGetSettings handles GET /api/v1/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	rec, valid, err := s.load()
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, SettingsResponse{Record: rec, Valid: valid})
}

// handlePutSettings handles PUT /api/v1/settings. The body is overlaid on
// the currently loaded record, so fields it omits keep their stored value.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	rec, _, err := s.load()
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		sendError(w, "invalid settings body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := rec.Validate(); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	err = s.manager.Save(rec)
	s.metrics.RecordSettingsOperation("save", err == nil, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info().Msg("settings updated")
	sendSuccess(w, SettingsResponse{Record: rec, Valid: true})
}

// handleEraseSettings handles DELETE /api/v1/settings
func (s *Server) handleEraseSettings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.manager.Erase()
	s.metrics.RecordSettingsOperation("erase", err == nil, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info().Msg("settings erased")
	sendSuccess(w, map[string]string{"status": "erased"})
}

// handleGetRaw handles GET /api/v1/settings/raw
func (s *Server) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	data, err := s.manager.ReadRaw()
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleGetFormat handles GET /api/v1/settings/format
func (s *Server) handleGetFormat(w http.ResponseWriter, r *http.Request) {
	rec, valid, err := s.load()
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, map[string]interface{}{
		"valid": valid,
		"lines": slices.Collect(settings.Format(rec)),
	})
}

// handleGetDefaults handles GET /api/v1/settings/defaults
func (s *Server) handleGetDefaults(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, settings.Defaults())
}

func (s *Server) snapshotResponse(snap snapshot.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		ID:        snap.ID,
		CreatedAt: snap.CreatedAt,
		Raw:       hex.EncodeToString(snap.Data),
	}
	if rec, err := s.manager.Codec().Decode(snap.Data); err == nil {
		resp.Valid = true
		resp.Record = &rec
	}
	return resp
}

// requireSnapshots reports whether snapshot routes can be served
func (s *Server) requireSnapshots(w http.ResponseWriter) bool {
	if s.snapshots == nil {
		sendError(w, "snapshot store not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// snapshotID parses the {id} URL parameter
func snapshotID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "invalid snapshot id", http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

// handleListSnapshots handles GET /api/v1/snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	snaps, err := s.snapshots.List()
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]SnapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, s.snapshotResponse(snap))
	}
	sendSuccess(w, out)
}

// handleCreateSnapshot handles POST /api/v1/snapshots. It stores the
// serialized form of the currently loaded record.
func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	rec, _, err := s.load()
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id, err := s.snapshots.Create(s.manager.Codec().Encode(rec))
	s.metrics.RecordSnapshotOperation("create", err == nil)
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	snap, err := s.snapshots.Get(id)
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info().Stringer("snapshot", id).Msg("snapshot created")
	sendSuccess(w, s.snapshotResponse(*snap))
}

// handleRestoreSnapshot handles POST /api/v1/snapshots/{id}/restore
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	id, ok := snapshotID(w, r)
	if !ok {
		return
	}

	snap, err := s.snapshots.Get(id)
	if err != nil {
		s.metrics.RecordSnapshotOperation("restore", false)
		if errors.Is(err, snapshot.ErrNotFound) {
			sendError(w, err.Error(), http.StatusNotFound)
			return
		}
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rec, err := s.manager.Codec().Decode(snap.Data)
	if err != nil {
		s.metrics.RecordSnapshotOperation("restore", false)
		sendError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	start := time.Now()
	err = s.manager.Save(rec)
	s.metrics.RecordSettingsOperation("save", err == nil, time.Since(start))
	s.metrics.RecordSnapshotOperation("restore", err == nil)
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info().Stringer("snapshot", id).Msg("snapshot restored")
	sendSuccess(w, SettingsResponse{Record: rec, Valid: true})
}

// handleDeleteSnapshot handles DELETE /api/v1/snapshots/{id}
func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	id, ok := snapshotID(w, r)
	if !ok {
		return
	}

	if _, err := s.snapshots.Get(id); err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			sendError(w, err.Error(), http.StatusNotFound)
			return
		}
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err := s.snapshots.Delete(id)
	s.metrics.RecordSnapshotOperation("delete", err == nil)
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, map[string]string{"status": "deleted"})
}
