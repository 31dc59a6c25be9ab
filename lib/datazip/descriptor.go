// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/datazip/lib/arraycodec"
	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/jsontree"
	"github.com/bureau-foundation/datazip/lib/tablecodec"
)

// Descriptor kinds.
const (
	kindFrame  = "frame"
	kindSeries = "series"
	kindArray  = "array"
	kindImage  = "image"
	kindObject = "object"
)

// squeezeKey marks a legacy frame descriptor whose table decodes as a
// series when it has exactly one column.
const squeezeKey = "squeeze"

// descriptor returns a reference node for an entry stored at location.
func descriptor(kind, location string) map[string]any {
	return map[string]any{jsontree.TagRef: true, "kind": kind, "location": location}
}

// DescriptorKind returns the kind of a manifest node: one of the
// descriptor kinds, or "inline" for a tree stored in the manifest
// itself.
func DescriptorKind(node any) string {
	object, ok := node.(map[string]any)
	if !ok || jsontree.Tag(object) != jsontree.TagRef {
		return "inline"
	}
	kind, _ := object["kind"].(string)
	return kind
}

// Kind returns the storage kind of the top-level entry name, as
// DescriptorKind reports it.
func (a *Archive) Kind(name string) (string, bool) {
	node, ok := a.manifest.Get(name)
	if !ok {
		return "", false
	}
	return DescriptorKind(node), true
}

// putTableMeta records table side metadata in a descriptor. Labels and
// names are tree-encoded so tuples and non-string labels survive.
func (a *Archive) putTableMeta(node map[string]any, meta tablecodec.Meta, series bool) error {
	labelEncoder := jsontree.Encoder{Registry: a.registry}

	pairs := make([]any, len(meta.Dtypes))
	for i, dtype := range meta.Dtypes {
		var label any
		if i < len(meta.DtypeLabels) {
			label = meta.DtypeLabels[i]
		}
		encoded, err := labelEncoder.Encode(label)
		if err != nil {
			return fmt.Errorf("encoding label of column %d: %w", i, err)
		}
		pairs[i] = []any{encoded, string(dtype)}
	}
	node["dtypes"] = pairs

	if meta.Labels != nil {
		labels, err := labelEncoder.Encode(meta.Labels)
		if err != nil {
			return fmt.Errorf("encoding labels: %w", err)
		}
		node["labels"] = labels
	}
	if meta.LevelNames != nil {
		names, err := labelEncoder.Encode(meta.LevelNames)
		if err != nil {
			return fmt.Errorf("encoding level names: %w", err)
		}
		node["level_names"] = names
	}
	if series {
		name, err := labelEncoder.Encode(meta.Name)
		if err != nil {
			return fmt.Errorf("encoding series name: %w", err)
		}
		node["name"] = name
	}
	return nil
}

// tableMeta reads the side metadata putTableMeta recorded, or the
// mapping form of dtypes older archives used.
func (a *Archive) tableMeta(node map[string]any) (tablecodec.Meta, error) {
	labelDecoder := jsontree.Decoder{Registry: a.registry, Warn: a.warn}
	var meta tablecodec.Meta

	switch dtypes := node["dtypes"].(type) {
	case nil:
	case []any:
		meta.DtypePairs = true
		meta.Dtypes = make([]frame.Dtype, len(dtypes))
		meta.DtypeLabels = make([]any, len(dtypes))
		for i, item := range dtypes {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return meta, fmt.Errorf("%w: dtype entry %d is %v", jsontree.ErrMalformed, i, item)
			}
			label, err := labelDecoder.Decode(pair[0])
			if err != nil {
				return meta, fmt.Errorf("decoding label of column %d: %w", i, err)
			}
			dtype, ok := pair[1].(string)
			if !ok {
				return meta, fmt.Errorf("%w: dtype of column %d is %T", jsontree.ErrMalformed, i, pair[1])
			}
			meta.DtypeLabels[i] = label
			meta.Dtypes[i] = frame.Dtype(dtype)
		}
	case map[string]any:
		meta.DtypeMap = make(map[string]frame.Dtype, len(dtypes))
		for name, dtype := range dtypes {
			text, ok := dtype.(string)
			if !ok {
				return meta, fmt.Errorf("%w: dtype of column %q is %T", jsontree.ErrMalformed, name, dtype)
			}
			meta.DtypeMap[name] = frame.Dtype(text)
		}
	default:
		return meta, fmt.Errorf("%w: dtypes is %T", jsontree.ErrMalformed, dtypes)
	}

	var err error
	if meta.Labels, err = decodeList(&labelDecoder, node, "labels"); err != nil {
		return meta, err
	}
	if meta.LevelNames, err = decodeList(&labelDecoder, node, "level_names"); err != nil {
		return meta, err
	}
	if raw, ok := node["name"]; ok {
		if meta.Name, err = labelDecoder.Decode(raw); err != nil {
			return meta, fmt.Errorf("decoding series name: %w", err)
		}
	}
	return meta, nil
}

func decodeList(decoder *jsontree.Decoder, node map[string]any, key string) ([]any, error) {
	raw, ok := node[key]
	if !ok || raw == nil {
		return nil, nil
	}
	decoded, err := decoder.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	list, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", jsontree.ErrMalformed, key, decoded)
	}
	return list, nil
}

func putArrayMeta(node map[string]any, meta arraycodec.Meta) {
	shape := make([]any, len(meta.Shape))
	for i, n := range meta.Shape {
		shape[i] = n
	}
	node["type"] = meta.Type
	node["dtype"] = meta.Dtype
	node["shape"] = shape
}

func arrayMeta(node map[string]any) (arraycodec.Meta, error) {
	var meta arraycodec.Meta
	meta.Type, _ = node["type"].(string)
	meta.Dtype, _ = node["dtype"].(string)
	if raw, ok := node["shape"].([]any); ok {
		meta.Shape = make([]int, len(raw))
		for i, item := range raw {
			n, ok := intOf(item)
			if !ok {
				return meta, fmt.Errorf("%w: shape entry %v", jsontree.ErrMalformed, item)
			}
			meta.Shape[i] = n
		}
	}
	return meta, nil
}

func intOf(node any) (int, bool) {
	switch typed := node.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case json.Number:
		n, err := typed.Int64()
		return int(n), err == nil
	}
	return 0, false
}
