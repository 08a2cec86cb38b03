package handlers

import (
	"net/http"

	excusesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/excuses"
	"github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/dto"
	httperrors "github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/errors"
)

// CatalogHandler serves the static generation catalogs the client renders
// its pickers from.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	categories := excusesvc.Categories()
	items := make([]dto.CategoryItem, 0, len(categories))
	for _, c := range categories {
		items = append(items, dto.CategoryItem{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	httperrors.Write(w, http.StatusOK, dto.CategoriesResponse{Categories: items})
}

func (h *CatalogHandler) UrgencyLevels(w http.ResponseWriter, _ *http.Request) {
	levels := excusesvc.UrgencyLevels()
	items := make([]dto.UrgencyItem, 0, len(levels))
	for _, u := range levels {
		items = append(items, dto.UrgencyItem{ID: u.ID, Name: u.Name, Description: u.Description, Icon: u.Icon})
	}
	httperrors.Write(w, http.StatusOK, dto.UrgencyLevelsResponse{UrgencyLevels: items})
}
