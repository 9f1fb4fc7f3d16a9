package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/listquery"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// writeStoreError maps domain errors onto status codes. Anything unknown is
// logged and reported as a 500 without leaking details.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		writeError(w, http.StatusNotFound, "Card not found")
	case errors.Is(err, domain.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, "Source not found")
	case errors.Is(err, domain.ErrNoCards):
		writeError(w, http.StatusNotFound, "No cards available")
	case errors.Is(err, domain.ErrInvalidCard):
		writeError(w, http.StatusBadRequest, "English and Romanian text are required")
	case errors.Is(err, domain.ErrNoFieldsToUpdate):
		writeError(w, http.StatusBadRequest, "No valid fields to update")
	case errors.Is(err, domain.ErrInvalidSource), errors.Is(err, listquery.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).
			WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// recoverAndLog turns a panicking handler into a 500.
func recoverAndLog(logger logrus.FieldLogger, handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithFields(logrus.Fields{
					"panic": rec,
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				}).Error("Recovered from panic in HTTP handler")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		handler.ServeHTTP(w, r)
	}
}
