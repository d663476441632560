package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scanHandler accepts a multipart upload under the "image" field (or a raw
// body) and returns the scan result.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	raw, err := s.readUpload(r)
	if err != nil {
		scansTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	uploadSizeBytes.Observe(float64(len(raw)))

	start := time.Now()
	res := s.scans.ScanWithProgress(r.Context(), raw, nil)
	scanDuration.Observe(time.Since(start).Seconds())

	switch {
	case res.Err != "":
		scansTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, res)
	case !res.Success:
		scansTotal.WithLabelValues("empty").Inc()
		writeJSON(w, http.StatusOK, res)
	default:
		scansTotal.WithLabelValues("ok").Inc()
		scanScore.Observe(res.Score)
		writeJSON(w, http.StatusOK, res)
	}
}

// readUpload pulls the image bytes out of the request: multipart field
// "image" when present, otherwise the raw body.
func (s *Server) readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.cfg.MaxUploadSize)

	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}
