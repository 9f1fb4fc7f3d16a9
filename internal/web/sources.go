package web

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/sync"
)

type addSourceRequest struct {
	Path string `json:"path" validate:"required"`
	Type string `json:"type" validate:"omitempty,oneof=local git"`
}

type syncResponse struct {
	Reports []sync.Report   `json:"reports"`
	Sources []domain.Source `json:"sources"`
	Failed  int             `json:"failed"`
}

func (s *Server) handleListSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

func (s *Server) handleAddSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addSourceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Source path is required")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err, "Source path is required"))
			return
		}

		existing, err := s.db.FindSourceByPath(r.Context(), req.Path)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "Source already exists")
			return
		}

		id, err := s.db.InsertSource(r.Context(), req.Path, req.Type)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		source, err := s.db.GetSource(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.logger.WithField("path", source.Path).WithField("type", source.Type).Info("Source added")
		writeJSON(w, http.StatusCreated, source)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid source ID")
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Source deleted successfully"})
	}
}

// handlePostSync reconciles every source and returns the refreshed list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.syncer.RunSync(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, syncResponse{
			Reports: reports,
			Sources: sources,
			Failed:  lo.CountBy(reports, func(rep sync.Report) bool { return rep.Error != "" }),
		})
	}
}
