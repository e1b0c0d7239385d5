package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/coverid/codec"
)

// Binary layout (little endian):
//
//	[magic "CVID"][version u8][compression u8][block]
//
// block is a codec block wrapping the body:
//
//	[rows u32][outputs u32][dim u32...]
//	[track id: uvarint len + bytes]...
//	[clique id i32]...
//	[bitmap len u32][roaring portable bytes]
//	[float32...] per matrix, row-major
var magic = [4]byte{'C', 'V', 'I', 'D'}

const (
	formatVersion = 1
	headerSize    = 6
)

var (
	// ErrBadMagic is returned for blobs that are not code artifacts.
	ErrBadMagic = errors.New("artifact: bad magic")
	// ErrUnsupportedVersion is returned for unknown format versions.
	ErrUnsupportedVersion = errors.New("artifact: unsupported format version")
	// ErrTruncated is returned when the body ends early.
	ErrTruncated = errors.New("artifact: truncated body")
)

// Marshal encodes a with the given block compression.
func Marshal(a *Artifact, c codec.Compression) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	n := a.Len()
	size := 8 + 4*len(a.Dims) + 4*n + 4
	for _, m := range a.Codes {
		size += 4 * len(m.Data)
	}
	body := make([]byte, 0, size)

	body = binary.LittleEndian.AppendUint32(body, uint32(n))
	body = binary.LittleEndian.AppendUint32(body, uint32(len(a.Dims)))
	for _, d := range a.Dims {
		body = binary.LittleEndian.AppendUint32(body, uint32(d))
	}
	for _, id := range a.TrackIDs {
		body = binary.AppendUvarint(body, uint64(len(id)))
		body = append(body, id...)
	}
	for _, c := range a.CliqueIDs {
		body = binary.LittleEndian.AppendUint32(body, uint32(c))
	}

	valid := a.Valid
	if valid == nil {
		valid = roaring.New()
	}
	bm, err := valid.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("artifact: encode bitmap: %w", err)
	}
	body = binary.LittleEndian.AppendUint32(body, uint32(len(bm)))
	body = append(body, bm...)

	for _, m := range a.Codes {
		for _, v := range m.Data {
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
		}
	}

	block, err := codec.CompressBlock(body, c)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(block))
	out = append(out, magic[:]...)
	out = append(out, formatVersion, byte(c))
	out = append(out, block...)
	return out, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, ErrTruncated
	}
	r.off += n
	return v, nil
}

// Unmarshal decodes an artifact written by Marshal.
func Unmarshal(data []byte) (*Artifact, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return nil, ErrBadMagic
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[4])
	}
	body, err := codec.DecompressBlock(data[headerSize:], codec.Compression(data[5]))
	if err != nil {
		return nil, err
	}

	r := &reader{buf: body}
	rows, err := r.uint32()
	if err != nil {
		return nil, err
	}
	outputs, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if uint64(outputs)*4 > uint64(len(body)) || uint64(rows)*4 > uint64(len(body)) {
		return nil, ErrTruncated
	}

	n := int(rows)
	a := &Artifact{
		Dims:      make([]int, outputs),
		Codes:     make([]*Matrix, outputs),
		TrackIDs:  make([]string, n),
		CliqueIDs: make([]int32, n),
		Valid:     roaring.New(),
	}
	for i := range a.Dims {
		d, err := r.uint32()
		if err != nil {
			return nil, err
		}
		a.Dims[i] = int(d)
	}
	for i := range a.TrackIDs {
		l, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		if l > uint64(len(body)) {
			return nil, ErrTruncated
		}
		b, err := r.next(int(l))
		if err != nil {
			return nil, err
		}
		a.TrackIDs[i] = string(b)
	}
	for i := range a.CliqueIDs {
		c, err := r.uint32()
		if err != nil {
			return nil, err
		}
		a.CliqueIDs[i] = int32(c)
	}

	bmLen, err := r.uint32()
	if err != nil {
		return nil, err
	}
	bm, err := r.next(int(bmLen))
	if err != nil {
		return nil, err
	}
	if err := a.Valid.UnmarshalBinary(bm); err != nil {
		return nil, fmt.Errorf("artifact: decode bitmap: %w", err)
	}

	for i, d := range a.Dims {
		cnt := uint64(n) * uint64(d)
		if cnt*4 > uint64(len(body)-r.off) {
			return nil, ErrTruncated
		}
		raw, _ := r.next(int(cnt) * 4)
		m := NewMatrix(n, d)
		for j := range m.Data {
			m.Data[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
		}
		a.Codes[i] = m
	}

	if r.off != len(body) {
		return nil, fmt.Errorf("artifact: %d trailing bytes", len(body)-r.off)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
