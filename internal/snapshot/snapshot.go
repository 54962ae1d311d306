// Package snapshot serializes spatial hash tables.
//
// Layout (little endian):
//
//	magic    [4]byte "PGHT"
//	version  uint16
//	compress uint8
//	codecLen uint8, codec name
//	hdrLen   uint32, Header encoded with the named codec
//	blocks   framed, optionally compressed chunks of the payload
//
// The payload is the concatenation of Splits, CellSplits and Index as int64
// values. Its xxhash64 is recorded in the header and verified on decode.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/pointgrid/codec"
)

// Version is the current format version.
const Version uint16 = 1

// DefaultBlockSize is the uncompressed size of one payload block.
const DefaultBlockSize = 256 * 1024

// MaxBlockSize bounds the uncompressed size of a block. Larger blocks are
// rejected on decode.
const MaxBlockSize = 16 << 20

var magic = [4]byte{'P', 'G', 'H', 'T'}

var (
	// ErrCorrupt is returned for snapshots that fail structural or checksum
	// validation.
	ErrCorrupt = errors.New("snapshot: corrupt data")

	// ErrVersion is returned for snapshots written by a newer format.
	ErrVersion = errors.New("snapshot: unsupported version")
)

// Header is the metadata stored ahead of the table arrays.
type Header struct {
	ID           string    `json:"id"`
	Radius       float64   `json:"radius"`
	SizeFactor   float64   `json:"size_factor,omitempty"`
	MaxTableSize int64     `json:"max_table_size,omitempty"`
	Batches      int       `json:"batches"`
	Points       int64     `json:"points"`
	Buckets      int64     `json:"buckets"`
	Checksum     uint64    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
}

// Snapshot is a decoded table.
type Snapshot struct {
	Header     Header
	Splits     []int64
	CellSplits []int64
	Index      []int64
}

// Options controls encoding.
type Options struct {
	Compression Compression
	// Codec encodes the header. Nil means codec.Default.
	Codec codec.Codec
	// BlockSize is the uncompressed block size. <= 0 means DefaultBlockSize;
	// values above MaxBlockSize are clamped.
	BlockSize int
}

// Encode writes s to w. Batches, Points, Buckets and Checksum in the header
// are derived from the arrays.
func Encode(w io.Writer, s *Snapshot, opts Options) error {
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	blockSize = min(blockSize, MaxBlockSize)
	if len(s.Splits) == 0 || len(s.CellSplits) == 0 {
		return errors.New("snapshot: table arrays are empty")
	}
	if len(c.Name()) > 255 {
		return fmt.Errorf("snapshot: codec name %q too long", c.Name())
	}

	payload := make([]byte, 0, 8*(len(s.Splits)+len(s.CellSplits)+len(s.Index)))
	for _, arr := range [][]int64{s.Splits, s.CellSplits, s.Index} {
		for _, v := range arr {
			payload = binary.LittleEndian.AppendUint64(payload, uint64(v))
		}
	}

	h := s.Header
	h.Batches = max(len(s.Splits)-1, 0)
	h.Points = int64(len(s.Index))
	h.Buckets = max(int64(len(s.CellSplits))-1, 0)
	h.Checksum = xxhash.Sum64(payload)
	hdr, err := c.Marshal(h)
	if err != nil {
		return fmt.Errorf("snapshot: encode header: %w", err)
	}

	out := make([]byte, 0, 16+len(c.Name())+len(hdr)+len(payload)/2)
	out = append(out, magic[:]...)
	out = binary.LittleEndian.AppendUint16(out, Version)
	out = append(out, byte(opts.Compression), byte(len(c.Name())))
	out = append(out, c.Name()...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(hdr)))
	out = append(out, hdr...)

	for off := 0; off < len(payload); off += blockSize {
		end := min(off+blockSize, len(payload))
		if out, err = appendBlock(out, payload[off:end], opts.Compression); err != nil {
			return err
		}
	}

	_, err = w.Write(out)
	return err
}

// Decode parses a snapshot. The returned arrays never alias data.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < 8 || [4]byte(data[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	comp := Compression(data[6])
	nameLen := int(data[7])
	data = data[8:]

	if len(data) < nameLen+4 {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	c, err := codec.ByName(string(data[:nameLen]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	data = data[nameLen:]
	hdrLen := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if len(data) < hdrLen {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}

	var h Header
	if err := c.Unmarshal(data[:hdrLen], &h); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	data = data[hdrLen:]
	if h.Batches < 0 || h.Points < 0 || h.Buckets < 0 {
		return nil, fmt.Errorf("%w: negative sizes in header", ErrCorrupt)
	}

	payload := make([]byte, 0, len(data))
	for len(data) > 0 {
		if payload, data, err = readBlock(payload, data, comp); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	if len(payload)%8 != 0 {
		return nil, fmt.Errorf("%w: payload is %d bytes, not a multiple of 8", ErrCorrupt, len(payload))
	}
	// Each count is bounded by the payload before summing, so the sum cannot
	// overflow.
	n := int64(len(payload) / 8)
	if int64(h.Batches) >= n || h.Buckets >= n || h.Points >= n ||
		int64(h.Batches)+1+h.Buckets+1+h.Points != n {
		return nil, fmt.Errorf("%w: payload holds %d values, header describes %d batches, %d buckets, %d points",
			ErrCorrupt, n, h.Batches, h.Buckets, h.Points)
	}
	if sum := xxhash.Sum64(payload); sum != h.Checksum {
		return nil, fmt.Errorf("%w: checksum %016x, want %016x", ErrCorrupt, sum, h.Checksum)
	}

	s := &Snapshot{Header: h}
	s.Splits, payload = readInts(payload, h.Batches+1)
	s.CellSplits, payload = readInts(payload, int(h.Buckets)+1)
	s.Index, _ = readInts(payload, int(h.Points))
	return s, nil
}

func readInts(b []byte, n int) ([]int64, []byte) {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, b[8*n:]
}
