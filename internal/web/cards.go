package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/listquery"
	"github.com/netn10/learn-romanian/internal/parser"
	"github.com/netn10/learn-romanian/internal/storage"
)

type createCardRequest struct {
	English  string   `json:"english" validate:"required,max=1000"`
	Romanian string   `json:"romanian" validate:"required,max=1000"`
	Tags     []string `json:"tags" validate:"max=32,dive,max=64"`
}

type updateCardRequest struct {
	English  *string   `json:"english" validate:"omitempty,max=1000"`
	Romanian *string   `json:"romanian" validate:"omitempty,max=1000"`
	Tags     *[]string `json:"tags" validate:"omitempty,max=32,dive,max=64"`
}

type textRequest struct {
	Text           *string  `json:"text" validate:"required"`
	SkipDuplicates *bool    `json:"skip_duplicates"`
	Tags           []string `json:"tags" validate:"max=32,dive,max=64"`
}

type listCardsResponse struct {
	Cards      []domain.Card `json:"cards"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

type parseResponse struct {
	Pairs []domain.ParsedPair `json:"pairs"`
	Count int                 `json:"count"`
}

type bulkResponse struct {
	Message string `json:"message"`
	*domain.ImportResult
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()

		page, err := intParam(params.Get("page"), 1)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		pageSize, err := intParam(params.Get("page_size"), s.cfg.DefaultPageSize)
		if err != nil || pageSize < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page_size")
			return
		}
		pageSize = min(pageSize, s.cfg.MaxPageSize)

		q := storage.CardQuery{
			Search:   params.Get("q"),
			Tags:     params["tag"],
			Page:     page,
			PageSize: pageSize,
		}
		if err := listquery.Bind(params.Get("filter"), params.Get("order_by"), &q); err != nil {
			s.writeStoreError(w, r, err)
			return
		}

		cards, total, err := s.db.ListCards(r.Context(), q)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listCardsResponse{
			Cards:      cards,
			TotalCount: total,
			Page:       page,
			PageSize:   pageSize,
		})
	}
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCardRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "English and Romanian text are required")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err, "English and Romanian text are required"))
			return
		}

		card, err := s.db.CreateCard(r.Context(), domain.ParsedPair{English: req.English, Romanian: req.Romanian}, req.Tags)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleRandomCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.db.RandomCard(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cardID(w, r)
		if !ok {
			return
		}
		card, err := s.db.GetCard(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleUpdateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cardID(w, r)
		if !ok {
			return
		}
		var req updateCardRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "No data provided")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err, "No valid fields to update"))
			return
		}

		card, err := s.db.UpdateCard(r.Context(), id, domain.CardUpdate{
			English:  req.English,
			Romanian: req.Romanian,
			Tags:     req.Tags,
		})
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cardID(w, r)
		if !ok {
			return
		}
		if err := s.db.DeleteCard(r.Context(), id); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Card deleted successfully"})
	}
}

// handleParseCards previews what a bulk import would create.
func (s *Server) handleParseCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeText(w, r)
		if !ok {
			return
		}
		pairs := parser.ParseText(*req.Text)
		if pairs == nil {
			pairs = []domain.ParsedPair{}
		}
		writeJSON(w, http.StatusOK, parseResponse{Pairs: pairs, Count: len(pairs)})
	}
}

func (s *Server) handleBulkCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeText(w, r)
		if !ok {
			return
		}
		pairs := parser.ParseText(*req.Text)
		if len(pairs) == 0 {
			writeError(w, http.StatusBadRequest, "No valid card pairs found in text")
			return
		}

		skip := s.importCfg.SkipDuplicates
		if req.SkipDuplicates != nil {
			skip = *req.SkipDuplicates
		}
		res, err := s.db.BulkCreate(r.Context(), pairs, storage.BulkOptions{
			SkipDuplicates: skip,
			Tags:           req.Tags,
		})
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.logger.WithField("added", res.AddedCount).WithField("skipped", res.SkippedCount).Info("Bulk import complete")
		writeJSON(w, http.StatusCreated, bulkResponse{
			Message:      fmt.Sprintf("Successfully added %d cards", res.AddedCount),
			ImportResult: res,
		})
	}
}

func (s *Server) handleListTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := s.db.ListTags(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

func (s *Server) decodeText(w http.ResponseWriter, r *http.Request) (textRequest, bool) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bulk text is required")
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err, "Bulk text is required"))
		return req, false
	}
	return req, true
}

func cardID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid card ID")
		return "", false
	}
	return id.String(), true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// validationMessage reports missing fields with requiredMsg and any other
// constraint as "Invalid <field>".
func validationMessage(err error, requiredMsg string) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return requiredMsg
	}
	for _, fe := range errs {
		if fe.Tag() == "required" {
			return requiredMsg
		}
	}
	return fmt.Sprintf("Invalid %s: must satisfy %s", errs[0].Field(), errs[0].Tag())
}
