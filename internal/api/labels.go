package api

import (
	"encoding/json"
	"net/http"

	"github.com/alertline/filtersvc/internal/store"
)

type labelsAPI struct {
	store *store.DB
}

type labelRequest struct {
	Name   string   `json:"label_name"`
	Values []string `json:"label_values"`
}

// create handles PUT /api/v1/filters/labels.
func (a *labelsAPI) create(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeMsg(w, http.StatusBadRequest, "label_name is required")
		return
	}
	if req.Values == nil {
		writeMsg(w, http.StatusBadRequest, "label_values is required")
		return
	}

	label, err := a.store.CreateLabel(req.Name, req.Values)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

// list handles GET /api/v1/filters/labels/all.
func (a *labelsAPI) list(w http.ResponseWriter, r *http.Request) {
	labels, err := a.store.ListLabels()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if labels == nil {
		labels = []*store.Label{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

// get handles GET /api/v1/filters/labels/{id}.
func (a *labelsAPI) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	label, err := a.store.GetLabel(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

// update handles POST /api/v1/filters/labels/{id}. Only the value set
// is replaceable; the name is immutable after creation.
func (a *labelsAPI) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Values == nil {
		writeMsg(w, http.StatusBadRequest, "label_values is required")
		return
	}

	label, err := a.store.UpdateLabelValues(id, req.Values)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

// delete handles DELETE /api/v1/filters/labels/{id}.
func (a *labelsAPI) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteLabel(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeMsg(w, http.StatusOK, "label successfully deleted")
}
