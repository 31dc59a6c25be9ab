// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// floatLiteral is a float64 that always marshals with a decimal point
// or exponent, so it parses back as a float.
type floatLiteral float64

func (f floatLiteral) MarshalJSON() ([]byte, error) {
	text := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return []byte(text), nil
}

// Prepare returns a copy of tree that encoding/json marshals without
// losing the int/float distinction. Use it when a tree is embedded in a
// larger document marshaled elsewhere.
func Prepare(tree any) any {
	switch typed := tree.(type) {
	case float64:
		return floatLiteral(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Prepare(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Prepare(item)
		}
		return out
	}
	return tree
}

// Marshal renders tree as indented JSON. Non-ASCII text and HTML
// characters are written as is.
func Marshal(tree any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(Prepare(tree)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

// Unmarshal parses data into a tree, keeping numbers as json.Number.
// Objects become map[string]any, except the field mapping of a legacy
// named tuple, which keeps document order as a Fields map.
func Unmarshal(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	tree, _, err := readNode(decoder)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON document", ErrMalformed)
	}
	return tree, nil
}

// Fields is an object whose key order is significant.
type Fields = orderedmap.OrderedMap[string, any]

// readNode reads one value. For objects it also returns the key order.
func readNode(decoder *json.Decoder) (any, []string, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, nil, err
	}
	delim, ok := token.(json.Delim)
	if !ok {
		return token, nil, nil
	}
	switch delim {
	case '[':
		list := []any{}
		for decoder.More() {
			item, _, err := readNode(decoder)
			if err != nil {
				return nil, nil, err
			}
			list = append(list, item)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, nil, err
		}
		return list, nil, nil
	case '{':
		object := map[string]any{}
		var keys, itemsOrder []string
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, nil, err
			}
			key, _ := keyToken.(string)
			item, order, err := readNode(decoder)
			if err != nil {
				return nil, nil, err
			}
			if _, seen := object[key]; !seen {
				keys = append(keys, key)
			}
			if key == "items" {
				itemsOrder = order
			}
			object[key] = item
		}
		if _, err := decoder.Token(); err != nil {
			return nil, nil, err
		}
		if _, ok := object[TagNamedTuple]; ok {
			if items, ok := object["items"].(map[string]any); ok {
				fields := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(itemsOrder)))
				for _, name := range itemsOrder {
					fields.Set(name, items[name])
				}
				object["items"] = fields
			}
		}
		return object, keys, nil
	}
	return nil, nil, fmt.Errorf("%w: unexpected %v", ErrMalformed, delim)
}

// EncodeJSON encodes v with e and marshals the result.
func (e *Encoder) EncodeJSON(v any) ([]byte, error) {
	tree, err := e.Encode(v)
	if err != nil {
		return nil, err
	}
	return Marshal(tree)
}

// DecodeJSON parses data and decodes the tree with d.
func (d *Decoder) DecodeJSON(data []byte) (any, error) {
	tree, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return d.Decode(tree)
}
