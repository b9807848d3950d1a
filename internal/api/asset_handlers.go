package api

import (
	"net/http"
	"strings"

	"assetbook/internal/domain"
	"assetbook/internal/models"
	"assetbook/internal/service"
)

type createAssetRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Details       string `json:"details"`
	SerialNumber  string `json:"serial_number"`
	Available     *bool  `json:"available"`
	CategoryID    *int64 `json:"category"`
	SubCategoryID *int64 `json:"subcategory"`
	LocationID    *int64 `json:"location"`
}

func (s *HTTPServer) handleListAssets(w http.ResponseWriter, r *http.Request) {
	var filter models.AssetFilter
	var err error
	if filter.CategoryID, err = queryInt(r, "category"); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.SubCategoryID, err = queryInt(r, "subcategory"); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.LocationID, err = queryInt(r, "location"); err != nil {
		s.fail(w, r, err)
		return
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))
	filter.OnlyAvailable = queryBool(r, "available")

	assets, err := s.svc.Assets.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, assets)
}

func (s *HTTPServer) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	asset, err := s.svc.Assets.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *HTTPServer) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	asset := &models.Asset{
		Name:          req.Name,
		Description:   req.Description,
		Details:       req.Details,
		SerialNumber:  req.SerialNumber,
		Available:     req.Available == nil || *req.Available,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		LocationID:    req.LocationID,
	}
	if err := s.svc.Assets.Create(r.Context(), asset); err != nil {
		s.fail(w, r, err)
		return
	}

	created, err := s.svc.Assets.Get(r.Context(), asset.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var patch service.AssetPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}

	asset, err := s.svc.Assets.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *HTTPServer) handleMoveAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		LocationID int64  `json:"location"`
		Note       string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	entry, err := s.svc.Assets.Move(r.Context(), id, req.LocationID, req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *HTTPServer) handleAssetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	history, err := s.svc.Assets.History(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, history)
}

func (s *HTTPServer) handleAssetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	upload, done, err := s.readImage(w, r)
	defer done()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if upload == nil {
		s.fail(w, r, domain.Validation("image is required"))
		return
	}

	asset, err := s.svc.Assets.SetImage(r.Context(), id, upload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Assets.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, categories)
}

func (s *HTTPServer) handleSubCategories(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryInt(r, "category")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	subs, err := s.svc.Assets.SubCategories(r.Context(), categoryID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, subs)
}

func (s *HTTPServer) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.svc.Assets.Locations(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, locations)
}
