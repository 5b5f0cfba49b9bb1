package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"webar/internal/api"
	"webar/internal/catalog"
	"webar/internal/logging"
	"webar/internal/registry"
	"webar/internal/services"
)

// multipartOverhead is the slack allowed on top of the file limit for form
// fields and part headers.
const multipartOverhead = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeEnvelope(w, http.StatusOK, success(r, api.Health{Status: "ok"}, ""))
		return
	}
	health := s.health(r.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeEnvelope(w, status, success(r, health, ""))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxBytes+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeEnvelope(w, http.StatusRequestEntityTooLarge,
				failure(r, fmt.Sprintf("file too large; the limit is %s", humanize.IBytes(uint64(s.limits.MaxBytes)))))
		case errors.Is(err, http.ErrMissingFile):
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "no file uploaded", nil))
		default:
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "malformed multipart form", err))
		}
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	limit := s.limits.MaxBytes
	if limit <= 0 {
		limit = 1<<63 - 1
	} else {
		limit++
	}
	if _, err := io.Copy(&buf, io.LimitReader(file, limit)); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "read uploaded file", err))
		return
	}
	if err := catalog.ValidateUpload(header.Filename, buf.Bytes(), s.limits); err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.catalog.Create(r.Context(), catalog.CreateRequest{
		Data:     buf.Bytes(),
		Name:     r.FormValue("name"),
		Filename: header.Filename,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, success(r, api.FromAsset(asset, s.baseURL, s.backendName), "model uploaded; conversion started"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := registry.ListOptions{Search: query.Get("search")}

	var err error
	if opts.Page, err = intParam(query.Get("page")); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", "page must be a positive integer", nil))
		return
	}
	if opts.Limit, err = intParam(query.Get("limit")); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", "limit must be a positive integer", nil))
		return
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := registry.ParseStatus(raw)
		if !ok {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", fmt.Sprintf("unknown status %q", raw), nil))
			return
		}
		opts.Status = status
	}
	opts = opts.Normalized()

	assets, total, err := s.catalog.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, success(r, api.AssetList{
		Items:      api.FromAssets(assets, s.baseURL, s.backendName),
		Pagination: api.NewPagination(opts.Page, opts.Limit, total),
	}, ""))
}

func (s *Server) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	asset, err := s.catalog.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, success(r, api.FromAsset(asset, s.baseURL, s.backendName), ""))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, success(r, nil, "model deleted"))
}

func (s *Server) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	asset, err := s.catalog.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, success(r, api.FromAssetPublic(asset, s.baseURL), ""))
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	variant, err := catalog.ParseVariant(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := s.catalog.OpenBySlug(r.Context(), r.PathValue("slug"), variant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Filename))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, file.Filename, file.Asset.UpdatedAt, bytes.NewReader(file.Data))
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "parse id", fmt.Sprintf("invalid asset id %q", raw), nil))
		return 0, false
	}
	return id, true
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, errors.New("not a positive integer")
	}
	return value, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "http_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the error field and the preceding component logs"),
		)
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}
	writeEnvelope(w, status, failure(r, message))
}
