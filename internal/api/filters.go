package api

import (
	"encoding/json"
	"net/http"

	"github.com/alertline/filtersvc/internal/store"
)

type filtersAPI struct {
	store *store.DB
}

type filterRequest struct {
	Name       string          `json:"filter_name"`
	Expression json.RawMessage `json:"filter_config"`
	Columns    json.RawMessage `json:"columns"`
	Grouping   []string        `json:"grouping"`
	Status     string          `json:"filter_status"`
}

func (f *filterRequest) validate(w http.ResponseWriter) bool {
	if f.Name == "" {
		writeMsg(w, http.StatusBadRequest, "filter_name is required")
		return false
	}
	if f.Status == "" {
		f.Status = store.StatusPrivate
	}
	if f.Status != store.StatusPrivate && f.Status != store.StatusPublic {
		writeMsg(w, http.StatusBadRequest, "filter_status must be private or public")
		return false
	}
	return true
}

// create handles PUT /api/v1/filters/config. The creator is taken from
// the authenticated username, never from the body.
func (a *filtersAPI) create(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !req.validate(w) {
		return
	}

	filter, err := a.store.CreateFilter(&store.Filter{
		Name:       req.Name,
		Expression: req.Expression,
		Columns:    req.Columns,
		Grouping:   req.Grouping,
		Status:     req.Status,
		CreatedBy:  usernameFrom(r),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filter)
}

// list handles GET /api/v1/filters/config/all. Private filters are
// visible only to their creator.
func (a *filtersAPI) list(w http.ResponseWriter, r *http.Request) {
	filters, err := a.store.ListFilters(usernameFrom(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if filters == nil {
		filters = []*store.Filter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": filters})
}

// get handles GET /api/v1/filters/config/{id}.
func (a *filtersAPI) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	filter, err := a.store.GetFilter(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filter)
}

// filterUpdateRequest distinguishes absent fields from empty ones:
// a field left out of the body stays unchanged.
type filterUpdateRequest struct {
	Name       *string         `json:"filter_name"`
	Expression json.RawMessage `json:"filter_config"`
	Columns    json.RawMessage `json:"columns"`
	Grouping   []string        `json:"grouping"`
	Status     *string         `json:"filter_status"`
}

// update handles POST /api/v1/filters/config/{id}. Fields absent from
// the body keep their stored values.
func (a *filtersAPI) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req filterUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	existing, err := a.store.GetFilter(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	updated := *existing
	if req.Name != nil {
		if *req.Name == "" {
			writeMsg(w, http.StatusBadRequest, "filter_name must not be empty")
			return
		}
		updated.Name = *req.Name
	}
	if req.Status != nil {
		if *req.Status != store.StatusPrivate && *req.Status != store.StatusPublic {
			writeMsg(w, http.StatusBadRequest, "filter_status must be private or public")
			return
		}
		updated.Status = *req.Status
	}
	if req.Expression != nil {
		updated.Expression = req.Expression
	}
	if req.Columns != nil {
		updated.Columns = req.Columns
	}
	if req.Grouping != nil {
		updated.Grouping = req.Grouping
	}

	filter, err := a.store.UpdateFilter(id, &updated)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filter)
}

// delete handles DELETE /api/v1/filters/config/{id}.
func (a *filtersAPI) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteFilter(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeMsg(w, http.StatusOK, "filter successfully deleted")
}
