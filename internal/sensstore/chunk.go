// Package sensstore persists sensitivity (Jacobian) matrices as chunked,
// zstd-compressed columnar objects with a JSON manifest, and reopens them
// as lazy Array handles supporting out-of-core matrix products.
package sensstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

const chunkVersion = 1

var chunkMagic = [4]byte{'P', 'G', 'I', 'S'}

var (
	// ErrChunkFormat is returned when chunk bytes have an invalid layout.
	ErrChunkFormat = errors.New("invalid sensitivity chunk format")

	// ErrChunkVersion is returned for an unsupported chunk version.
	ErrChunkVersion = errors.New("unsupported sensitivity chunk version")

	// ErrChecksum is returned when a chunk fails checksum verification.
	ErrChecksum = errors.New("sensitivity chunk checksum mismatch")
)

// encodeChunk lays out a row block as magic, version, padding, row and
// column counts, then row-major float64 little-endian values.
func encodeChunk(rows, cols int, values []float64) ([]byte, error) {
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrChunkFormat, len(values), rows, cols)
	}

	var buf bytes.Buffer
	buf.Grow(16 + 8*len(values))
	buf.Write(chunkMagic[:])
	buf.WriteByte(chunkVersion)
	buf.Write([]byte{0, 0, 0})
	writeUint32(&buf, uint32(rows))
	writeUint32(&buf, uint32(cols))
	for _, v := range values {
		writeUint64(&buf, math.Float64bits(v))
	}
	return buf.Bytes(), nil
}

func decodeChunk(data []byte) (rows, cols int, values []float64, err error) {
	if len(data) < 16 || !bytes.Equal(data[:4], chunkMagic[:]) {
		return 0, 0, nil, ErrChunkFormat
	}
	if data[4] != chunkVersion {
		return 0, 0, nil, fmt.Errorf("%w: %d", ErrChunkVersion, data[4])
	}
	rows = int(binary.LittleEndian.Uint32(data[8:12]))
	cols = int(binary.LittleEndian.Uint32(data[12:16]))
	payload := data[16:]
	if len(payload) != rows*cols*8 {
		return 0, 0, nil, fmt.Errorf("%w: payload size %d for %dx%d", ErrChunkFormat, len(payload), rows, cols)
	}
	values = make([]float64, rows*cols)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:]))
	}
	return rows, cols, values, nil
}

// compressChunk zstd-compresses encoded chunk bytes.
func compressChunk(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressChunk(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkFormat, err)
	}
	return out, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
