// Package codec encodes and decodes storefront records (catalog products,
// cart lines, orders) as JSON with go-faster/jx.
//
// Decoding is explicit and field by field. The Read helpers report a value
// of the wrong type through ok=false after consuming it, and return an error
// only when the input is not valid JSON, so callers decide per field whether
// to reject the record or repair it.
package codec

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ErrMalformed is returned when a payload does not have the expected shape.
var ErrMalformed = errors.New("malformed record")

// ReadString reads a JSON string.
func ReadString(d *jx.Decoder) (string, bool, error) {
	if d.Next() != jx.String {
		return "", false, d.Skip()
	}
	s, err := d.Str()
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// ReadDecimal reads a JSON number or a string holding a number.
func ReadDecimal(d *jx.Decoder) (decimal.Decimal, bool, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, false, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, false, err
		}
		raw = s
	default:
		return decimal.Decimal{}, false, d.Skip()
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, nil
	}
	return v, true, nil
}

// ReadInt reads an integral number.
func ReadInt(d *jx.Decoder) (int, bool, error) {
	v, ok, err := ReadDecimal(d)
	if err != nil || !ok {
		return 0, false, err
	}
	if !v.IsInteger() || v.Abs().GreaterThan(maxInt) {
		return 0, false, nil
	}
	return int(v.IntPart()), true, nil
}

var maxInt = decimal.NewFromInt(1 << 31)

// ReadID reads an identifier given either as a non-empty string or as an
// integral number. Numbers are returned in decimal notation.
func ReadID(d *jx.Decoder) (string, bool, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return "", false, err
		}
		return s, s != "", nil
	case jx.Number:
		v, ok, err := ReadDecimal(d)
		if err != nil || !ok || !v.IsInteger() {
			return "", false, err
		}
		return v.String(), true, nil
	default:
		return "", false, d.Skip()
	}
}

// fieldError reports a required field that is missing or has the wrong type.
func fieldError(field string) error {
	return errors.Wrapf(ErrMalformed, "field %q", field)
}

// EncodeDecimal writes v as a JSON number in its exact decimal notation.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}
