package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/neostore/internal/codec"
	"github.com/xenking/neostore/internal/domain/product"
)

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	st := h.session.Status()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("catalog")
		e.Str(string(st.State))
		if st.LoadErr != nil {
			e.FieldStart("error")
			e.Str(st.LoadErr.Error())
		}
		e.FieldStart("products")
		e.Int(st.Products)
		e.FieldStart("cartCount")
		e.Int(st.CartCount)
		e.ObjEnd()
	})
}

func (h *Handler) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.session.LoadCatalog(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	h.status(w, r)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := product.ParseCriteria(product.RawCriteria{
		Query:       q.Get("q"),
		Category:    q.Get("category"),
		InStockOnly: q.Get("inStock"),
		MinPrice:    q.Get("minPrice"),
		MaxPrice:    q.Get("maxPrice"),
		Sort:        q.Get("sort"),
	})

	products := h.session.Products(criteria)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			codec.EncodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.session.Product(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.EncodeProduct(e, p) })
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	categories := h.session.Categories()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range categories {
			e.Str(c)
		}
		e.ArrEnd()
	})
}
