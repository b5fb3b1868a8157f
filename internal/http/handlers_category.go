package http

import (
	"errors"
	"net/http"

	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/storage"
)

func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
		InternalServerError("Failed to load categories").Write(w)
		return
	}

	s.render(w, r, "category_list.html", struct {
		Categories []core.Category
	}{Categories: categories})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	category := core.Category{
		Name:        sanitizeInput(r.Form.Get("name")),
		Icon:        sanitizeInput(r.Form.Get("icon")),
		Color:       sanitizeInput(r.Form.Get("color")),
		Description: sanitizeInput(r.Form.Get("description")),
	}
	if err := category.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), category)
	if errors.Is(err, storage.ErrDuplicate) {
		ConflictError("A category with that name already exists").Write(w)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Create category failed",
			log.FieldError, err, "name", category.Name)
		InternalServerError("Failed to save category").Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Category created",
		log.FieldCategoryID, created.ID, "name", created.Name)

	NewHTMXResponse().
		TriggerCategoryChanged().
		TriggerPageRefresh().
		TriggerSuccessNotification("Category created").
		BodyHTML(`<div class="success">Category created</div>`).
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, ok := parseID(r.Form.Get("id"))
	if !ok {
		id, ok = parseID(r.URL.Query().Get("id"))
	}
	if !ok {
		BadRequestError("Missing category id").Write(w)
		return
	}

	err := s.store.DeleteCategory(r.Context(), id)
	if errors.Is(err, storage.ErrCategoryInUse) {
		ConflictError("Category is still used by expenses").Write(w)
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		NotFoundError("Category not found").Write(w)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Delete category failed",
			log.FieldError, err, log.FieldCategoryID, id)
		InternalServerError("Failed to delete category").Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Category deleted", log.FieldCategoryID, id)

	NewHTMXResponse().
		TriggerCategoryChanged().
		TriggerPageRefresh().
		TriggerSuccessNotification("Category deleted").
		BodyHTML(`<div class="success">Category deleted</div>`).
		Write(w)
}
