// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress compresses image payloads and registers zstd as a
// zip entry method.
//
// A framed payload is one tag byte, the uncompressed size as a uvarint,
// then the compressed bytes. The size lets decompression allocate
// exactly once and verify the result.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm of a framed payload. The
// values are stored in archives and must not change.
type Tag uint8

const (
	// None stores the payload as is.
	None Tag = 0

	// LZ4 is LZ4 block compression: fast, modest ratio.
	LZ4 Tag = 1

	// Zstd is zstd at the default level: better ratio for text-like
	// payloads.
	Zstd Tag = 2

	// Auto is not stored. It asks [Compress] to probe the payload and
	// pick one of the above.
	Auto Tag = 255
)

// ZipMethod is the zip compression method id registered for zstd
// entries.
const ZipMethod = zstd.ZipMethodWinZip

// String returns the name of a tag.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseTag parses a tag name as printed by [Tag.String].
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "auto":
		return Auto, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, zstd or auto)", name)
	}
}

// errIncompressible is returned when compressed output is not smaller
// than the input. Callers fall back to None.
var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Frame compresses data with tag and returns the framed payload. An
// incompressible payload is framed with None instead.
func Frame(data []byte, tag Tag) ([]byte, error) {
	if tag == Auto {
		tag = Select(data)
	}
	compressed, err := compressWith(data, tag)
	if errors.Is(err, errIncompressible) {
		compressed, tag = data, None
	} else if err != nil {
		return nil, err
	}

	framed := make([]byte, 1, 1+binary.MaxVarintLen64+len(compressed))
	framed[0] = byte(tag)
	framed = binary.AppendUvarint(framed, uint64(len(data)))
	return append(framed, compressed...), nil
}

// Unframe reverses [Frame].
func Unframe(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, fmt.Errorf("framed payload is %d bytes, too short for a header", len(framed))
	}
	tag := Tag(framed[0])
	size, n := binary.Uvarint(framed[1:])
	if n <= 0 {
		return nil, errors.New("framed payload has a malformed size")
	}
	return decompressWith(framed[1+n:], tag, int(size))
}

// FrameTag returns the tag of a framed payload.
func FrameTag(framed []byte) (Tag, error) {
	if len(framed) == 0 {
		return 0, errors.New("empty framed payload")
	}
	return Tag(framed[0]), nil
}

func compressWith(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func decompressWith(compressed []byte, tag Tag, size int) ([]byte, error) {
	switch tag {
	case None:
		if len(compressed) != size {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d", len(compressed), size)
		}
		return compressed, nil
	case LZ4:
		return decompressLZ4(compressed, size)
	case Zstd:
		return decompressZstd(compressed, size)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}

// Select probes data with zstd: a ratio of at least 1.5 picks Zstd,
// at least 1.1 picks LZ4, anything less None.
func Select(data []byte) Tag {
	if len(data) == 0 {
		return None
	}
	ratio := float64(len(data)) / float64(len(zstdEncoder.EncodeAll(data, nil)))
	switch {
	case ratio >= 1.5:
		return Zstd
	case ratio >= 1.1:
		return LZ4
	default:
		return None
	}
}

// RegisterZipWriter makes w able to write entries with [ZipMethod].
func RegisterZipWriter(w *zip.Writer) {
	w.RegisterCompressor(ZipMethod, zstd.ZipCompressor())
}

// RegisterZipReader makes r able to read entries written with
// [ZipMethod].
func RegisterZipReader(r *zip.Reader) {
	r.RegisterDecompressor(ZipMethod, zstd.ZipDecompressor())
}
