// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type handleDescription struct {
	Path     string `cbor:"path"`
	PoolSize int    `cbor:"pool_size"`
}

func TestImageRoundTrip(t *testing.T) {
	image, err := NewImage(ImageRecipe, "example.Handle", handleDescription{Path: "/tmp/a.db", PoolSize: 4})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	data, err := Marshal(image)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Image
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != ImageRecipe || decoded.Type != "example.Handle" {
		t.Errorf("envelope = %+v", decoded)
	}

	var description handleDescription
	if err := decoded.DecodePayload(&description); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if description.Path != "/tmp/a.db" || description.PoolSize != 4 {
		t.Errorf("description = %+v", description)
	}
}

func TestPayloadDecodesToCanonicalKinds(t *testing.T) {
	image, err := NewImage(ImageRecipe, "example.Handle", map[string]any{"path": "x", "pool_size": 2})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	var payload any
	if err := image.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	m, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload decoded as %T, want map[string]any", payload)
	}
	if _, ok := m["pool_size"].(int64); !ok {
		t.Errorf("pool_size decoded as %T, want int64", m["pool_size"])
	}
}

func TestMarshalDeterministic(t *testing.T) {
	payload := map[string]any{"z": 1, "a": []byte("bytes"), "m": "middle"}
	first, err := NewImage(ImageBytes, "", payload)
	if err != nil {
		t.Fatalf("first NewImage: %v", err)
	}
	second, err := NewImage(ImageBytes, "", payload)
	if err != nil {
		t.Fatalf("second NewImage: %v", err)
	}
	if !bytes.Equal(first.Payload, second.Payload) {
		t.Errorf("deterministic encoding violated: %x != %x", first.Payload, second.Payload)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(Image{Kind: ImageBytes, Payload: RawMessage{0x43, 'a', 'b', 'c'}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"kind": "bytes"`) || !strings.Contains(diagnostic, `h'616263'`) {
		t.Errorf("Diagnose = %s", diagnostic)
	}
}
