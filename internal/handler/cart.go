package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/neostore/internal/codec"
)

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	writeCart(w, h.session.Cart())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.ClearCart(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, view)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var (
		id    string
		found bool
	)
	err := readObject(r, func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		v, ok, err := codec.ReadID(d)
		if err != nil {
			return err
		}
		id, found = v, ok
		return nil
	})
	if err == nil && !found {
		err = errors.Wrap(errBadRequest, "productId is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	view, err := h.session.AddToCart(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, view)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var (
		qty   int
		found bool
	)
	err := readObject(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, ok, err := codec.ReadInt(d)
		if err != nil {
			return err
		}
		qty, found = v, ok
		return nil
	})
	if err == nil && !found {
		err = errors.Wrap(errBadRequest, "quantity must be an integer")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	view, err := h.session.SetQuantity(r.Context(), chi.URLParam(r, "id"), qty)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, view)
}

func (h *Handler) incrementItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.IncrementQuantity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, view)
}

func (h *Handler) decrementItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.DecrementQuantity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, view)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.RemoveFromCart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, view)
}
