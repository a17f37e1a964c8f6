package ingest

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	tagMultiDimArray = 40
	tagUint8         = 64
)

// frameBytes accepts a plain byte string, a tag 64 uint8 typed array, or a
// tag 40 multi-dimensional array wrapping one.
func frameBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case cbor.Tag:
		switch v.Number {
		case tagUint8:
			return typedBytes(v)
		case tagMultiDimArray:
			return decodeMultiDimArray(v)
		}
		return nil, fmt.Errorf("unsupported tag %d", v.Number)
	default:
		return nil, fmt.Errorf("unsupported data type %T", value)
	}
}

func typedBytes(tag cbor.Tag) ([]byte, error) {
	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}
	return data, nil
}

func decodeMultiDimArray(tag cbor.Tag) ([]byte, error) {
	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return nil, errors.New("invalid multidim array content")
	}
	dims, ok := items[0].([]any)
	if !ok || len(dims) == 0 {
		return nil, errors.New("invalid multidim dimensions")
	}
	want := 1
	for _, dim := range dims {
		n, err := toInt(dim)
		if err != nil {
			return nil, err
		}
		want *= n
	}

	inner, ok := items[1].(cbor.Tag)
	if !ok || inner.Number != tagUint8 {
		return nil, errors.New("multidim array must hold a uint8 typed array")
	}
	data, err := typedBytes(inner)
	if err != nil {
		return nil, err
	}
	if len(data) != want {
		return nil, fmt.Errorf("dimension mismatch: %d bytes for %d elements", len(data), want)
	}
	return data, nil
}
