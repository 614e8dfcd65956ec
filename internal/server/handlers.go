package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/metrics"
	"github.com/KaramelBytes/instadash-cli/internal/query"
	"github.com/KaramelBytes/instadash-cli/internal/workspace"
)

type uploadResponse struct {
	Dataset  *workspace.Dataset `json:"dataset"`
	Analysis *analysis.Analysis `json:"analysis"`
}

type chatRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
}

type spikeRequest struct {
	AnomalyIndex *int `json:"anomaly_index" validate:"required,gte=0"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opt.MaxUploadBytes); err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInput, "invalid multipart upload", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Input("missing form field \"file\""))
		return
	}
	defer file.Close()

	d, t, err := s.store.ImportReader(header.Filename, file, s.opt.Load)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a := s.analyze(t)
	if err := s.store.SaveAnalysis(d.ID, a); err != nil {
		writeError(w, r, err)
		return
	}
	if d, err = s.store.Get(d.ID); err != nil {
		writeError(w, r, err)
		return
	}
	s.mu.Lock()
	s.snapshots[d.ID] = query.NewSnapshot(t, a)
	s.mu.Unlock()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, uploadResponse{Dataset: d, Analysis: a})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, d)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, snap.Analysis)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	s.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a := query.AnswerQuestion(r.Context(), snap, req.Question, s.fallback, s.opt.Query)
	metrics.CountAnswer("chat", a.Origin)
	render.JSON(w, r, a)
}

func (s *Server) handlePivot(w http.ResponseWriter, r *http.Request) {
	var req query.PivotRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInput, "invalid JSON body", err))
		return
	}
	snap, err := s.snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := query.RunPivot(snap, req, s.opt.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.CountAnswer("pivot", a.Origin)
	render.JSON(w, r, a)
}

func (s *Server) handleExplainSpike(w http.ResponseWriter, r *http.Request) {
	var req spikeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := query.ExplainSpike(snap, *req.AnomalyIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.CountAnswer("explain_spike", a.Origin)
	render.JSON(w, r, a)
}

// decode reads a JSON body into v and validates its struct tags.
func (s *Server) decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return apperr.Wrap(apperr.KindInput, "invalid JSON body", err)
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Input(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
		return apperr.Wrap(apperr.KindInput, "invalid request", err)
	}
	return nil
}
