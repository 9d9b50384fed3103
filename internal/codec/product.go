package codec

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/neostore/internal/domain/product"
)

// EncodeProduct writes p as a JSON object.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	EncodeDecimal(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("oldPrice")
	if p.OldPrice.Valid {
		EncodeDecimal(e, p.OldPrice.Decimal)
	} else {
		e.Null()
	}
	e.FieldStart("inStock")
	e.Bool(p.InStock())
	e.ObjEnd()
}

// MarshalCatalog encodes products as {"products":[...]}.
func MarshalCatalog(products []product.Product) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range products {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

// DecodeCatalog decodes a catalog payload. Both {"products":[...]} and a bare
// array are accepted. Every product must carry an id, a name and a price;
// any other malformation fails the whole payload.
func DecodeCatalog(data []byte) ([]product.Product, error) {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Array:
		return decodeProducts(d)
	case jx.Object:
		var (
			products []product.Product
			found    bool
		)
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if key != "products" {
				return d.Skip()
			}
			found = true
			var err error
			products, err = decodeProducts(d)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fieldError("products")
		}
		return products, nil
	default:
		return nil, errors.Wrap(ErrMalformed, "catalog must be an object or an array")
	}
}

func decodeProducts(d *jx.Decoder) ([]product.Product, error) {
	if d.Next() != jx.Array {
		return nil, errors.Wrap(ErrMalformed, "products must be an array")
	}

	products := make([]product.Product, 0)
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product #%d", len(products))
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p                      product.Product
		hasID, hasName, hasPrc bool
	)
	if d.Next() != jx.Object {
		return p, errors.Wrap(ErrMalformed, "product must be an object")
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		var (
			ok  bool
			err error
		)
		switch key {
		case "id":
			p.ID, ok, err = ReadID(d)
			hasID = ok
		case "name":
			p.Name, ok, err = ReadString(d)
			hasName = ok
		case "description":
			p.Description, ok, err = readOptionalString(d)
		case "price":
			p.Price, ok, err = ReadDecimal(d)
			hasPrc = ok
		case "category":
			p.Category, ok, err = readOptionalString(d)
		case "stock":
			p.Stock, ok, err = readOptionalInt(d)
		case "image":
			p.Image, ok, err = readOptionalString(d)
		case "oldPrice":
			p.OldPrice, ok, err = readNullDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return err
		}
		if !ok {
			return fieldError(key)
		}
		return nil
	})
	if err != nil {
		return p, err
	}

	switch {
	case !hasID:
		return p, fieldError("id")
	case !hasName:
		return p, fieldError("name")
	case !hasPrc:
		return p, fieldError("price")
	}
	return p, nil
}

func readOptionalString(d *jx.Decoder) (string, bool, error) {
	if d.Next() == jx.Null {
		return "", true, d.Null()
	}
	return ReadString(d)
}

func readOptionalInt(d *jx.Decoder) (int, bool, error) {
	if d.Next() == jx.Null {
		return 0, true, d.Null()
	}
	return ReadInt(d)
}

func readNullDecimal(d *jx.Decoder) (decimal.NullDecimal, bool, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, true, d.Null()
	}
	v, ok, err := ReadDecimal(d)
	if err != nil || !ok {
		return decimal.NullDecimal{}, false, err
	}
	return decimal.NewNullDecimal(v), true, nil
}
