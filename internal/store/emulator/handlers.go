package emulator

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// ─── JSON ───

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError escribe el cuerpo de error de PocketBase: {code, message, data}.
func writeError(w http.ResponseWriter, status int, message string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	writeJSON(w, status, map[string]any{"code": status, "message": message, "data": data})
}

// writeFailure traduce un error del store a la respuesta HTTP.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var f *store.Failure
	if errors.As(err, &f) {
		status := f.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeError(w, status, f.Message, f.Data)
		return
	}
	logger.From(r.Context()).Error("store error", logger.Err(err))
	writeError(w, http.StatusInternalServerError, "Something went wrong while processing your request.", nil)
}

// readJSON decodifica el body (máx 1MB) con números como json.Number.
// Retorna false si ya escribió el error.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusBadRequest, "Unsupported Content-Type.", nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Failed to load the submitted data due to invalid formatting.", nil)
		return false
	}
	return true
}

// ─── Admins ───

func (s *Server) authWithPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if !s.readJSON(w, r, &in) {
		return
	}
	if in.Identity == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "Failed to authenticate.", map[string]any{
			"identity": map[string]any{"code": "validation_required", "message": "Missing required value."},
		})
		return
	}
	if err := s.store.VerifyAdmin(in.Identity, in.Password); err != nil {
		logger.From(r.Context()).Info("admin login rejected", logger.MaskedEmail(in.Identity))
		writeFailure(w, r, err)
		return
	}
	tok, err := s.issuer.issue(in.Identity, time.Now())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": tok,
		"admin": map[string]any{"email": strings.ToLower(in.Identity)},
	})
}

// ─── Collections ───

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	cols := s.store.ListCollections()
	writeJSON(w, http.StatusOK, map[string]any{
		"page":       1,
		"perPage":    len(cols),
		"totalItems": len(cols),
		"totalPages": 1,
		"items":      cols,
	})
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCollection(chi.URLParam(r, "collection"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var in store.Collection
	if !s.readJSON(w, r, &in) {
		return
	}
	c, err := s.store.CreateCollection(in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logger.From(r.Context()).Info("collection created", logger.Collection(c.Name), logger.RecordID(c.ID))
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCollection(w http.ResponseWriter, r *http.Request) {
	var in store.Collection
	if !s.readJSON(w, r, &in) {
		return
	}
	c, err := s.store.UpdateCollection(chi.URLParam(r, "collection"), in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logger.From(r.Context()).Info("collection updated", logger.Collection(c.Name))
	writeJSON(w, http.StatusOK, c)
}

// ─── Records ───

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	perPage := queryInt(q.Get("perPage"), 30)

	var expr filter.Expr
	if raw := strings.TrimSpace(q.Get("filter")); raw != "" {
		e, err := filter.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid filter parameters.", map[string]any{
				"filter": map[string]any{"code": "validation_invalid_filter", "message": err.Error()},
			})
			return
		}
		expr = e
	}

	items, total, err := s.store.ListRecords(chi.URLParam(r, "collection"), expr, page, perPage)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if items == nil {
		items = []store.Record{}
	}

	totalItems, totalPages := total, 1
	if perPage > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	if skip, _ := strconv.ParseBool(q.Get("skipTotal")); skip {
		totalItems, totalPages = -1, -1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": totalItems,
		"totalPages": totalPages,
		"items":      items,
	})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecord(chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var in store.Record
	if !s.readJSON(w, r, &in) {
		return
	}
	rec, err := s.store.CreateRecord(chi.URLParam(r, "collection"), in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var in store.Record
	if !s.readJSON(w, r, &in) {
		return
	}
	rec, err := s.store.UpdateRecord(chi.URLParam(r, "collection"), chi.URLParam(r, "id"), in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRecord(chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
