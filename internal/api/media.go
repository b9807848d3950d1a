package api

import (
	"io"
	"net/http"
	"strings"
)

// handleMedia streams a stored image by key.
func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/media/")
	if key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	rc, contentType, err := s.svc.Images.Open(key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("media stream interrupted")
	}
}
