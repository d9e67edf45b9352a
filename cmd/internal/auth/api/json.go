package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const msgBodyTooLarge = "Request body too large"

var errTrailingData = errors.New("trailing data after request object")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the failure shape every account endpoint shares.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, authResponse{Success: false, Code: code, Message: msg})
}

// readRequest decodes exactly one JSON object into dst. On failure it has
// already answered the request, counted it under op, and returns false.
func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	err := decodeStrict(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes), dst)
	if err == nil {
		return true
	}

	h.metrics.observe(op, "bad_request")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", msgBodyTooLarge)
		return false
	}
	h.log.Debug("auth."+op+".bad_body", "err", err)
	writeError(w, http.StatusBadRequest, "invalid_json", msgInvalidBody)
	return false
}

func decodeStrict(body io.ReadCloser, dst any) error {
	defer func() { _ = body.Close() }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}
