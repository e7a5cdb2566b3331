package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/share"
)

// formOverhead is headroom on top of the blob cap for multipart
// boundaries and the small scalar fields.
const formOverhead = 64 * 1024

// handleUpload accepts one multipart blob plus its expiry and uses
// fields. The body is capped before any byte is parsed so an oversized
// request fails without buffering the whole thing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.gate.AllowUpload(ctx, clientIP(r)); err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize+formOverhead)
	if err := r.ParseMultipartForm(s.maxFileSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size is %d bytes", s.maxFileSize))
			return
		}
		writeError(w, http.StatusBadRequest, "Malformed multipart form")
		return
	}

	expiry, err := formInt(r, "expiry", constants.DefaultExpiryMinutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	uses, err := formInt(r, "uses", constants.DefaultUses)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A file field is required")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "Filename must not be empty")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to read upload body")
		writeError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	resp, err := s.svc.Upload(ctx, share.UploadRequest{
		Data:          data,
		Filename:      header.Filename,
		DeclaredMime:  header.Header.Get("Content-Type"),
		ExpiryMinutes: expiry,
		Uses:          uses,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleDownload streams the decrypted blob. Aggressive no-cache
// headers keep one-shot content out of shared caches; the hash header
// lets clients verify what they received.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Download(r.Context(), chi.URLParam(r, "key"), clientIP(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	h.Set("Content-Type", res.MimeType)
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("X-SHA256", res.SHA256)
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Preview(r.Context(), chi.URLParam(r, "key"), clientIP(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Status(r.Context(), chi.URLParam(r, "key"), clientIP(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth always answers 200; the body says whether the service is
// actually usable. Probes distinguish "down" from "degraded" by status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Report(r.Context()))
}

// formInt reads an optional integer field, applying def when absent.
func formInt(r *http.Request, name string, def int) (int, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
