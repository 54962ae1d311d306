package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression of the array payload.
type Compression uint8

const (
	// CompressionNone stores blocks as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block layout: [raw size uint32][stored size uint32][data]. A stored size
// of 0 marks a block kept uncompressed.
const blockHeaderSize = 8

// appendBlock compresses data and appends the framed block to dst. Blocks
// that do not shrink by at least 10% are stored raw.
func appendBlock(dst, data []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("snapshot: unsupported compression %s", c)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))
	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(packed)))
	dst = append(dst, hdr[:]...)
	return append(dst, packed...), nil
}

var errShortBlock = errors.New("block extends beyond data")

// readBlock decodes the block at the start of data into dst and returns the
// remaining input.
func readBlock(dst, data []byte, c Compression) ([]byte, []byte, error) {
	if len(data) < blockHeaderSize {
		return nil, nil, errShortBlock
	}
	raw := int(binary.LittleEndian.Uint32(data[0:]))
	stored := int(binary.LittleEndian.Uint32(data[4:]))
	data = data[blockHeaderSize:]
	if raw > MaxBlockSize {
		return nil, nil, fmt.Errorf("block of %d bytes exceeds %d", raw, MaxBlockSize)
	}

	if stored == 0 {
		if len(data) < raw {
			return nil, nil, errShortBlock
		}
		return append(dst, data[:raw]...), data[raw:], nil
	}
	if len(data) < stored {
		return nil, nil, errShortBlock
	}
	packed, rest := data[:stored], data[stored:]

	start := len(dst)
	dst = append(dst, make([]byte, raw)...)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(packed, dst[start:])
		if err != nil {
			return nil, nil, err
		}
		if n != raw {
			return nil, nil, errors.New("decompressed size mismatch")
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(packed, dst[start:start])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, nil, err
		}
		if len(out) != raw {
			return nil, nil, errors.New("decompressed size mismatch")
		}
		copy(dst[start:], out)
	default:
		return nil, nil, fmt.Errorf("compressed block in a %s snapshot", c)
	}
	return dst, rest, nil
}
