// Package handler exposes the storefront session over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/neostore/internal/storefront"
)

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

// Handler serves the storefront JSON API.
type Handler struct {
	session *storefront.Session
}

// New returns a Handler for session.
func New(session *storefront.Session) *Handler {
	return &Handler{session: session}
}

// Mount registers the API routes under /api on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Post("/catalog/reload", h.reloadCatalog)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/categories", h.listCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addItem)
			r.Put("/items/{id}", h.setQuantity)
			r.Post("/items/{id}/increment", h.incrementItem)
			r.Post("/items/{id}/decrement", h.decrementItem)
			r.Delete("/items/{id}", h.removeItem)
		})

		r.Post("/checkout", h.checkout)
		r.Get("/orders/last", h.lastOrder)
	})
}

// RoutePattern returns the matched chi route pattern of r, or the raw path
// when routing has not happened.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
