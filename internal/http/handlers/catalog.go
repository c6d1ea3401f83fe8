package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"avatarforge/internal/catalog"
)

type pageResponse[T any] struct {
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
	Items     []T `json:"items"`
}

// paginate clamps the requested page before slicing; the pager never clamps.
func paginate[T any](items []T, r *http.Request) pageResponse[T] {
	size := catalog.DefaultPageSize
	count := catalog.PageCount(len(items), size)
	requested, _ := strconv.Atoi(r.URL.Query().Get("page"))
	page := catalog.ClampPage(requested, count)
	out := catalog.Page(items, page, size)
	if out == nil {
		out = []T{}
	}
	return pageResponse[T]{Page: page, PageCount: count, PageSize: size, Total: len(items), Items: out}
}

func (a *App) CatalogAvatars(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, paginate(a.Catalog.Avatars, r))
}

type categorySummary struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Items       int    `json:"items"`
}

func (a *App) CatalogCategories(w http.ResponseWriter, r *http.Request) {
	out := make([]categorySummary, 0, len(a.Catalog.Categories))
	for i, c := range a.Catalog.Categories {
		out = append(out, categorySummary{Index: i, Name: c.Name, Description: c.Description, Items: len(c.Items)})
	}
	a.json(w, http.StatusOK, out)
}

// CatalogDecorations pages one category, chosen by index or by name.
func (a *App) CatalogDecorations(w http.ResponseWriter, r *http.Request) {
	cat, ok := a.lookupCategory(r.URL.Query().Get("category"))
	if !ok {
		a.error(w, http.StatusNotFound, "Category not found", "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"category":    cat.Name,
		"description": cat.Description,
		"decorations": paginate(cat.Items, r),
	})
}

func (a *App) lookupCategory(ref string) (catalog.Category, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return a.Catalog.Category(0)
	}
	if i, err := strconv.Atoi(ref); err == nil {
		return a.Catalog.Category(i)
	}
	for _, c := range a.Catalog.Categories {
		if strings.EqualFold(c.Name, ref) {
			return c, true
		}
	}
	return catalog.Category{}, false
}
