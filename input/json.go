//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package input

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
)

// ParseJSON parses plaintext inputs from a JSON object. The values are
// numbers or strings in decimal or 0x-prefixed hexadecimal with an
// optional leading minus sign. Arrays, nested to any depth, are
// flattened in row-major order.
func ParseJSON(f *field.Field, in io.Reader) (map[string][]field.Element,
	error) {

	dec := json.NewDecoder(in)
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, errors.Wrap(err, "parsing input")
	}
	result := make(map[string][]field.Element)
	for name, v := range obj {
		vals, err := flatten(f, v, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", name)
		}
		result[name] = vals
	}
	return result, nil
}

func flatten(f *field.Field, v interface{}, result []field.Element) (
	[]field.Element, error) {

	switch val := v.(type) {
	case []interface{}:
		var err error
		for _, el := range val {
			result, err = flatten(f, el, result)
			if err != nil {
				return nil, err
			}
		}
		return result, nil

	case json.Number:
		e, err := f.SetString(val.String())
		if err != nil {
			return nil, err
		}
		return append(result, e), nil

	case string:
		e, err := f.SetString(val)
		if err != nil {
			return nil, err
		}
		return append(result, e), nil

	case bool:
		if val {
			return append(result, f.One()), nil
		}
		return append(result, f.Zero()), nil

	default:
		return nil, errors.Mark(errors.Newf("invalid value %v", v),
			field.ErrInvalidElement)
	}
}

// ParseWitnessJSON parses a plaintext witness from a JSON array of
// field values.
func ParseWitnessJSON(f *field.Field, in io.Reader) ([]field.Element, error) {
	dec := json.NewDecoder(in)
	dec.UseNumber()

	var arr []interface{}
	if err := dec.Decode(&arr); err != nil {
		return nil, errors.Wrap(err, "parsing witness")
	}
	return flatten(f, arr, nil)
}
