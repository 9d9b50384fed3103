package codec

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/neostore/internal/domain/cart"
)

// EncodeLine writes a cart line using the persisted field names.
func EncodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ProductID)
	e.FieldStart("name")
	e.Str(l.Name)
	e.FieldStart("price")
	EncodeDecimal(e, l.Price)
	e.FieldStart("image")
	e.Str(l.Image)
	e.FieldStart("qty")
	e.Int(l.Quantity)
	e.ObjEnd()
}

// MarshalLines encodes lines as a JSON array.
func MarshalLines(lines []cart.Line) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, l := range lines {
		EncodeLine(e, l)
	}
	e.ArrEnd()

	return append([]byte(nil), e.Bytes()...)
}

// DecodeLines decodes a persisted cart. Individual lines are repaired
// rather than rejected:
//
//   - a line without a usable id or with a missing or negative price is dropped;
//   - a name or image that is not a string becomes empty;
//   - a quantity that is missing, not an integer or below one becomes 1.
//
// Input that is not a JSON array fails with ErrMalformed.
func DecodeLines(data []byte) ([]cart.Line, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, errors.Wrap(ErrMalformed, "cart must be an array")
	}

	lines := make([]cart.Line, 0)
	err := d.Arr(func(d *jx.Decoder) error {
		l, ok, err := decodeLine(d)
		if err != nil {
			return err
		}
		if ok {
			lines = append(lines, l)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return lines, nil
}

func decodeLine(d *jx.Decoder) (cart.Line, bool, error) {
	l := cart.Line{Quantity: 1}
	if d.Next() != jx.Object {
		return l, false, d.Skip()
	}

	var hasID, hasPrice bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, ok, err := ReadID(d)
			if err != nil {
				return err
			}
			l.ProductID, hasID = id, ok
		case "name":
			name, _, err := ReadString(d)
			if err != nil {
				return err
			}
			l.Name = name
		case "image":
			image, _, err := ReadString(d)
			if err != nil {
				return err
			}
			l.Image = image
		case "price":
			price, ok, err := ReadDecimal(d)
			if err != nil {
				return err
			}
			l.Price, hasPrice = price, ok && !price.IsNegative()
		case "qty":
			qty, ok, err := ReadInt(d)
			if err != nil {
				return err
			}
			if ok && qty >= 1 {
				l.Quantity = qty
			}
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return l, false, err
	}
	return l, hasID && hasPrice, nil
}
