package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alertline/filtersvc/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// writeMsg writes a {"msg": ...} body, the error shape of this API.
func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

// writeStoreError maps store errors to API responses. Unexpected errors
// get a generic body; detail goes to the log only.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(w, http.StatusNotFound, "object with specified id is not found")
	case errors.Is(err, store.ErrNameExists):
		writeMsg(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("storage error", "error", err)
		writeMsg(w, http.StatusInternalServerError, "Exception raised. Check logs for additional info")
	}
}

// pathID parses the {id} path segment. A non-numeric id is a client
// error.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMsg(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}
