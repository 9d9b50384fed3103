package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/neostore/internal/codec"
	"github.com/xenking/neostore/internal/domain/cart"
	"github.com/xenking/neostore/internal/domain/order"
	"github.com/xenking/neostore/internal/domain/product"
	"github.com/xenking/neostore/internal/storefront"
)

// errBadRequest marks a request body that could not be decoded.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// fail maps a domain error to its HTTP response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *order.BuyerFieldError
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fieldErr):
		writeError(w, http.StatusBadRequest, fieldErr.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, order.ErrNoOrder):
		writeError(w, http.StatusNotFound, "no order has been placed")
	case errors.Is(err, cart.ErrOutOfStock):
		writeError(w, http.StatusConflict, "product out of stock")
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, product.ErrCatalogLoad):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readObject decodes the JSON object in the request body, calling field for
// every key. The body must hold exactly one object of at most maxBodySize
// bytes.
func readObject(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.Wrapf(errBadRequest, "read body: %s", err)
	}
	if len(data) > maxBodySize {
		return errors.Wrapf(errBadRequest, "body exceeds %d bytes", maxBodySize)
	}
	if !jx.Valid(data) {
		return errors.Wrap(errBadRequest, "body must be a single JSON value")
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return errors.Wrap(errBadRequest, "body must be a JSON object")
	}
	if err := d.Obj(field); err != nil {
		if errors.Is(err, errBadRequest) {
			return err
		}
		return errors.Wrapf(errBadRequest, "invalid JSON: %s", err)
	}
	return nil
}

func encodeCart(e *jx.Encoder, v storefront.CartView) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range v.Lines {
		codec.EncodeLine(e, l)
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(v.Count)
	e.FieldStart("subtotal")
	codec.EncodeDecimal(e, v.Subtotal)
	e.FieldStart("tax")
	codec.EncodeDecimal(e, v.Tax)
	e.FieldStart("total")
	codec.EncodeDecimal(e, v.Total)
	e.ObjEnd()
}

func writeCart(w http.ResponseWriter, v storefront.CartView) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, v) })
}
