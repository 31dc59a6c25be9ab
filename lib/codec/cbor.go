// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode decodes into the same canonical kinds the tree codec
// produces: map[string]any for maps and int64 for every integer.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Recipe descriptions decoded into any must look like decoded
		// JSON, not map[interface{}]interface{}.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value, used to delay decoding of an
// image payload until its kind is known.
type RawMessage = cbor.RawMessage

// Image kinds.
const (
	// ImageBytes holds a []byte payload.
	ImageBytes = "bytes"

	// ImageRecipe holds the description a registered recipe produced.
	ImageRecipe = "recipe"

	// ImageBinary holds the MarshalBinary output of a registered
	// encoding.BinaryMarshaler.
	ImageBinary = "binary"
)

// Image is the envelope of an image entry.
type Image struct {
	Kind    string     `cbor:"kind"`
	Type    string     `cbor:"type,omitempty"`
	Payload RawMessage `cbor:"payload"`
}

// NewImage encodes payload into an envelope.
func NewImage(kind, typeID string, payload any) (Image, error) {
	encoded, err := Marshal(payload)
	if err != nil {
		return Image{}, fmt.Errorf("encoding %s image payload for %q: %w", kind, typeID, err)
	}
	return Image{Kind: kind, Type: typeID, Payload: encoded}, nil
}

// DecodePayload decodes the envelope's payload into v.
func (i Image) DecodePayload(v any) error {
	if err := Unmarshal(i.Payload, v); err != nil {
		return fmt.Errorf("decoding %s image payload for %q: %w", i.Kind, i.Type, err)
	}
	return nil
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
