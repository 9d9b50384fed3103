package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/neostore/internal/codec"
	"github.com/xenking/neostore/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	span := trace.SpanFromContext(r.Context())

	var buyer order.Buyer
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "name":
			dst = &buyer.Name
		case "email":
			dst = &buyer.Email
		case "phone":
			dst = &buyer.Phone
		case "address":
			dst = &buyer.Address
		default:
			return d.Skip()
		}
		v, ok, err := codec.ReadString(d)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(errBadRequest, "%s must be a string", key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.session.Checkout(r.Context(), buyer)
	if err != nil {
		span.SetStatus(codes.Error, "checkout rejected")
		span.RecordError(err)
		fail(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("neostore.order.id", o.ID),
		attribute.Int("neostore.order.items", len(o.Items)),
		attribute.Float64("neostore.order.total", o.Totals.Total.InexactFloat64()),
	)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { codec.EncodeOrder(e, o) })
}

func (h *Handler) lastOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.session.LastOrder(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.EncodeOrder(e, o) })
}
