package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dexidp/sso/ssoerr"
)

func writeJSON(logger *slog.Logger, w http.ResponseWriter, code int, resp interface{}) {
	enc, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed encoding response body", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(enc); err != nil {
		logger.Error("failed writing response body", "err", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps an engine error's Kind to the caller-visible HTTP status
// and a constant, Kind-derived message. It never forwards err's own text:
// that text is for logs only, per ssoerr's own contract.
func writeError(logger *slog.Logger, w http.ResponseWriter, err error) {
	kind := ssoerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case ssoerr.Forbidden:
		status = http.StatusForbidden
	case ssoerr.BadRequest:
		status = http.StatusBadRequest
	case ssoerr.NotFound:
		status = http.StatusNotFound
	case ssoerr.ServiceDisabled:
		status = http.StatusForbidden
	case ssoerr.Driver, ssoerr.Unknown:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		logger.Error("engine operation failed", "err", err)
	}

	writeJSON(logger, w, status, errorBody{Error: kind.String()})
}
