package codec

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/neostore/internal/domain/order"
)

// legacyTimeLayout is the zone-less timestamp format accepted on decode.
const legacyTimeLayout = "2006-01-02 15:04:05"

// EncodeOrder writes o as a JSON object.
func EncodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("at")
	e.Str(o.PlacedAt.Format(time.RFC3339))

	e.FieldStart("buyer")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Buyer.Name)
	e.FieldStart("email")
	e.Str(o.Buyer.Email)
	e.FieldStart("phone")
	e.Str(o.Buyer.Phone)
	e.FieldStart("address")
	e.Str(o.Buyer.Address)
	e.ObjEnd()

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("qty")
		e.Int(it.Quantity)
		e.FieldStart("price")
		EncodeDecimal(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("totals")
	e.ObjStart()
	e.FieldStart("subtotal")
	EncodeDecimal(e, o.Totals.Subtotal)
	e.FieldStart("tax")
	EncodeDecimal(e, o.Totals.Tax)
	e.FieldStart("total")
	EncodeDecimal(e, o.Totals.Total)
	e.ObjEnd()

	e.ObjEnd()
}

// MarshalOrder encodes o.
func MarshalOrder(o *order.Order) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	EncodeOrder(e, o)
	return append([]byte(nil), e.Bytes()...)
}

// DecodeOrder decodes a persisted order. Unlike cart lines, orders are not
// repaired: id, at, items and totals are required and every present field
// must have the right type.
func DecodeOrder(data []byte) (*order.Order, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, errors.Wrap(ErrMalformed, "order must be an object")
	}

	var (
		o    order.Order
		seen = map[string]bool{}
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var (
			ok  bool
			err error
		)
		switch key {
		case "id":
			o.ID, ok, err = ReadString(d)
			ok = ok && o.ID != ""
		case "at":
			var raw string
			raw, ok, err = ReadString(d)
			if ok {
				o.PlacedAt, ok = parseTime(raw)
			}
		case "buyer":
			ok, err = decodeBuyer(d, &o.Buyer)
		case "items":
			o.Items, ok, err = decodeItems(d)
		case "totals":
			ok, err = decodeTotals(d, &o.Totals)
		default:
			return d.Skip()
		}
		if err != nil {
			return err
		}
		if !ok {
			return fieldError(key)
		}
		seen[key] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"id", "at", "items", "totals"} {
		if !seen[key] {
			return nil, fieldError(key)
		}
	}
	return &o, nil
}

func parseTime(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, raw, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func decodeBuyer(d *jx.Decoder, b *order.Buyer) (bool, error) {
	if d.Next() != jx.Object {
		return false, d.Skip()
	}
	valid := true
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "name":
			dst = &b.Name
		case "email":
			dst = &b.Email
		case "phone":
			dst = &b.Phone
		case "address", "addr":
			dst = &b.Address
		default:
			return d.Skip()
		}
		s, ok, err := ReadString(d)
		if err != nil {
			return err
		}
		*dst = s
		valid = valid && ok
		return nil
	})
	return valid, err
}

func decodeItems(d *jx.Decoder) ([]order.Item, bool, error) {
	if d.Next() != jx.Array {
		return nil, false, d.Skip()
	}
	items := make([]order.Item, 0)
	valid := true
	err := d.Arr(func(d *jx.Decoder) error {
		it, ok, err := decodeItem(d)
		if err != nil {
			return err
		}
		valid = valid && ok
		items = append(items, it)
		return nil
	})
	return items, valid, err
}

func decodeItem(d *jx.Decoder) (order.Item, bool, error) {
	var it order.Item
	if d.Next() != jx.Object {
		return it, false, d.Skip()
	}
	var hasID, hasQty, hasPrice bool
	valid := true
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var (
			ok  bool
			err error
		)
		switch key {
		case "id":
			it.ProductID, ok, err = ReadID(d)
			hasID = ok
		case "name":
			it.Name, ok, err = ReadString(d)
		case "qty":
			it.Quantity, ok, err = ReadInt(d)
			ok = ok && it.Quantity >= 1
			hasQty = ok
		case "price":
			it.Price, ok, err = ReadDecimal(d)
			hasPrice = ok
		default:
			return d.Skip()
		}
		valid = valid && ok
		return err
	})
	return it, valid && hasID && hasQty && hasPrice, err
}

func decodeTotals(d *jx.Decoder, t *order.Totals) (bool, error) {
	if d.Next() != jx.Object {
		return false, d.Skip()
	}
	var seen int
	valid := true
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "subtotal", "tax", "total":
		default:
			return d.Skip()
		}
		v, ok, err := ReadDecimal(d)
		if err != nil {
			return err
		}
		switch key {
		case "subtotal":
			t.Subtotal = v
		case "tax":
			t.Tax = v
		case "total":
			t.Total = v
		}
		seen++
		valid = valid && ok
		return nil
	})
	return valid && seen == 3, err
}
