package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/store"
)

const maxAssetsLimit = 200

type generateResponse struct {
	SessionID string `json:"sessionId"`
	StatusURL string `json:"statusUrl"`
	EventsURL string `json:"eventsUrl"`
}

// handleGenerate validates a job, initializes its session and runs it in the
// background. The session id is returned before any provider is called.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "generation is not configured", nil)
		return
	}
	var job pipeline.Job
	if !s.decode(w, r, &job) {
		return
	}
	if job.SessionID != "" && s.tracker != nil {
		if _, exists := s.tracker.GetProgress(job.SessionID); exists {
			s.writeError(w, http.StatusConflict, fmt.Sprintf("session %s already exists", job.SessionID), nil)
			return
		}
	}
	job, err := s.runner.Prepare(job)
	if err != nil {
		s.writeError(w, apperrors.HTTPStatusFor(err), err.Error(), err)
		return
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.JobTimeout)
		defer cancel()
		// The runner records the failure on the session; nothing else to do here.
		_, _ = s.runner.Run(ctx, job)
	}()

	s.logger.Info("generation accepted",
		logging.String("session", job.SessionID),
		logging.String("output", string(job.Output)))
	s.writeJSON(w, http.StatusAccepted, generateResponse{
		SessionID: job.SessionID,
		StatusURL: "/api/progress/" + job.SessionID,
		EventsURL: "/api/progress/" + job.SessionID + "/events",
	})
}

type analyzeRequest struct {
	ImageURL          string `json:"imageUrl,omitempty"`
	CharacterImageURL string `json:"characterImageUrl,omitempty"`
	ProductImageURL   string `json:"productImageUrl,omitempty"`
	Prompt            string `json:"prompt,omitempty"`
	Model             string `json:"model,omitempty"`
}

type analyzeResponse struct {
	ProviderID string `json:"providerId"`
	Text       string `json:"text"`
}

// handleAnalyze runs one synchronous analysis request through the
// orchestrator.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "analysis is not configured", nil)
		return
	}
	var body analyzeRequest
	if !s.decode(w, r, &body) {
		return
	}
	req := provider.Request{
		Kind:              provider.KindAnalysis,
		Prompt:            body.Prompt,
		CharacterImageURL: body.CharacterImageURL,
		ProductImageURL:   body.ProductImageURL,
		SourceImageURL:    body.ImageURL,
		Model:             body.Model,
	}
	if len(req.ImageURLs()) == 0 {
		err := apperrors.ValidationError{Field: "imageUrl", Message: "at least one image URL is required"}
		s.writeError(w, http.StatusBadRequest, err.Error(), err)
		return
	}

	res, err := s.analyzer.Execute(r.Context(), req)
	if err != nil {
		s.logger.Error("analysis failed", err)
		s.writeError(w, apperrors.HTTPStatusFor(err), err.Error(), err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzeResponse{ProviderID: res.ProviderID, Text: res.Text})
}

// handleProgress returns the full view of one session.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.tracker == nil {
		s.writeError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	sess, ok := s.tracker.GetProgress(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	statuses := []provider.Status{}
	if s.registry != nil {
		statuses = s.registry.Statuses()
	}
	s.writeJSON(w, http.StatusOK, statuses)
}

// handleAssets lists persisted assets of one session, or the most recent
// assets when no session is given.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		s.writeJSON(w, http.StatusOK, []store.Asset{})
		return
	}
	q := r.URL.Query()
	var (
		assets []store.Asset
		err    error
	)
	if session := q.Get("sessionId"); session != "" {
		assets, err = s.assets.ListAssetsBySession(r.Context(), session)
	} else {
		limit := 0
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 || limit > maxAssetsLimit {
				verr := apperrors.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxAssetsLimit)}
				s.writeError(w, http.StatusBadRequest, verr.Error(), verr)
				return
			}
		}
		assets, err = s.assets.ListRecentAssets(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("list assets", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list assets", nil)
		return
	}
	if assets == nil {
		assets = []store.Asset{}
	}
	s.writeJSON(w, http.StatusOK, assets)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth runs every registered check with a short deadline. Any failing
// check turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(s.health) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Checks = make(map[string]string, len(s.health))
		for name, check := range s.health {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	s.writeJSON(w, status, resp)
}

// decode reads a JSON body into v, writing a 400 and returning false on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Security.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}
