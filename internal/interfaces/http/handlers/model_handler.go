package handlers

import (
	"net/http"

	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/regression"
)

// ModelLister reports configured and resident models.
type ModelLister interface {
	Properties() []common.Property
	Loaded() []*regression.Model
}

// ModelListResponse is the body of GET /api/v1/models.
type ModelListResponse struct {
	Properties []string          `json:"properties"`
	Models     []regression.Info `json:"models"`
}

// ModelHandler serves model metadata.
type ModelHandler struct {
	models ModelLister
}

func NewModelHandler(models ModelLister) *ModelHandler {
	return &ModelHandler{models: models}
}

// List handles GET /api/v1/models. Only models already loaded are listed
// in Models; Properties names everything configured.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := ModelListResponse{Properties: []string{}, Models: []regression.Info{}}
	for _, p := range h.models.Properties() {
		resp.Properties = append(resp.Properties, p.String())
	}
	for _, m := range h.models.Loaded() {
		resp.Models = append(resp.Models, m.Info())
	}
	writeJSON(w, http.StatusOK, resp)
}
