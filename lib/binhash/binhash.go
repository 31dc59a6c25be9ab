// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte keyed BLAKE3 digest.
type Digest [32]byte

// entryDomainKey is the ASCII domain name zero-padded to 32 bytes.
// Changing it invalidates every stored checksum.
var entryDomainKey = [32]byte{
	'd', 'a', 't', 'a', 'z', 'i', 'p', '.', 'e', 'n', 't', 'r', 'y',
}

// Hasher is a streaming entry digest. It implements io.Writer.
type Hasher struct {
	inner *blake3.Hasher
}

// NewHasher returns a Hasher in its initial keyed state.
func NewHasher() *Hasher {
	inner, err := blake3.NewKeyed(entryDomainKey[:])
	if err != nil {
		panic("binhash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return &Hasher{inner: inner}
}

// Write adds data to the digest. It never fails.
func (h *Hasher) Write(data []byte) (int, error) {
	return h.inner.Write(data)
}

// Digest returns the digest of everything written so far.
func (h *Hasher) Digest() Digest {
	var digest Digest
	copy(digest[:], h.inner.Sum(nil))
	return digest
}

// Sum returns the entry digest of data.
func Sum(data []byte) Digest {
	hasher := NewHasher()
	hasher.Write(data)
	return hasher.Digest()
}

// HashReader streams r through the entry digest.
func HashReader(r io.Reader) (Digest, error) {
	hasher := NewHasher()
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, err
	}
	return hasher.Digest(), nil
}

// HashFile computes the entry digest of the file at path with
// constant memory.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	digest, err := HashReader(file)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// FormatDigest returns the hex form of digest.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// String implements fmt.Stringer with [FormatDigest].
func (d Digest) String() string { return FormatDigest(d) }

// ParseDigest parses a 64-character hex digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}
