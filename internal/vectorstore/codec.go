package vectorstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"pdfrag/internal/domain"
)

// File layout, little endian:
//
//	magic "RAGV" | version u16 | metric u8 | reserved u8 | dimension u32 |
//	count u32 | model len u16 | model | raw len u32 | payload len u32 |
//	payload (zstd) | crc32(payload) u32
//
// The raw payload holds count entries of
//
//	source len u32 | source | text len u32 | text | dimension x float32
//
// Loading trusts nothing in the file: count, raw length and the compression
// ratio are capped before the payload is decompressed, so a small file cannot
// claim a payload larger than maxCompressionRatio times its own size.
const (
	formatVersion       = 1
	maxDimension        = 1 << 16
	maxEntries          = 1 << 20
	maxRawPayload       = 1 << 30
	maxCompressionRatio = 1024
	// payloads below this size are accepted at any ratio
	minRatioCheck = 1 << 16
)

var magic = [4]byte{'R', 'A', 'G', 'V'}

var (
	errBadMagic   = errors.New("bad magic")
	errBadVersion = errors.New("unsupported version")
	errTruncated  = errors.New("truncated data")
	errChecksum   = errors.New("checksum mismatch")
)

// encode writes the index in the binary file format.
func (idx *Index) encode(w io.Writer) error {
	var raw bytes.Buffer
	for _, e := range idx.entries {
		writeString(&raw, e.source)
		writeString(&raw, e.text)
		for _, v := range e.vector {
			_ = binary.Write(&raw, binary.LittleEndian, math.Float32bits(v))
		}
	}
	if len(idx.entries) > maxEntries {
		return fmt.Errorf("index has %d entries, limit is %d", len(idx.entries), maxEntries)
	}
	if raw.Len() > maxRawPayload {
		return fmt.Errorf("index payload too large: %d bytes", raw.Len())
	}
	var payload []byte
	if raw.Len() > 0 {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("create compressor: %w", err)
		}
		payload = enc.EncodeAll(raw.Bytes(), nil)
		_ = enc.Close()
	}
	if err := checkRatio(uint64(raw.Len()), uint64(len(payload))); err != nil {
		return err
	}

	model := idx.model
	if len(model) > math.MaxUint16 {
		model = model[:math.MaxUint16]
	}
	var hdr bytes.Buffer
	hdr.Write(magic[:])
	le := binary.LittleEndian
	_ = binary.Write(&hdr, le, uint16(formatVersion))
	hdr.WriteByte(byte(idx.metric))
	hdr.WriteByte(0)
	_ = binary.Write(&hdr, le, uint32(idx.dimension))
	_ = binary.Write(&hdr, le, uint32(len(idx.entries)))
	_ = binary.Write(&hdr, le, uint16(len(model)))
	hdr.WriteString(model)
	_ = binary.Write(&hdr, le, uint32(raw.Len()))
	_ = binary.Write(&hdr, le, uint32(len(payload)))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return binary.Write(w, le, crc32.ChecksumIEEE(payload))
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

// decode parses data produced by encode. Header claims are bounded before
// the payload is decompressed, and entries are allocated as they decode.
func decode(data []byte) (*Index, error) {
	idx, err := decodeIndex(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptIndex, err)
	}
	return idx, nil
}

func decodeIndex(data []byte) (*Index, error) {
	r := &reader{data: data}
	m, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(m, magic[:]) {
		return nil, errBadMagic
	}
	version, err := r.u16()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: %d", errBadVersion, version)
	}
	metricByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	metric := Metric(metricByte)
	if !metric.valid() {
		return nil, fmt.Errorf("unknown metric %d", metricByte)
	}
	if _, err := r.u8(); err != nil {
		return nil, err
	}
	dimension, err := r.u32()
	if err != nil {
		return nil, err
	}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	if count > maxEntries {
		return nil, fmt.Errorf("%d entries exceeds limit %d", count, maxEntries)
	}
	if dimension > maxDimension || (dimension == 0 && count != 0) {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	modelLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	model, err := r.bytes(int(modelLen))
	if err != nil {
		return nil, err
	}
	rawLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if rawLen > maxRawPayload {
		return nil, fmt.Errorf("raw payload too large: %d", rawLen)
	}
	// each entry needs two length prefixes and its vector
	minEntry := uint64(8) + uint64(dimension)*4
	if uint64(count)*minEntry > uint64(rawLen) {
		return nil, fmt.Errorf("%d entries of dimension %d cannot fit in %d bytes", count, dimension, rawLen)
	}
	payloadLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	payload, err := r.bytes(int(payloadLen))
	if err != nil {
		return nil, err
	}
	sum, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.remaining())
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, errChecksum
	}
	if err := checkRatio(uint64(rawLen), uint64(payloadLen)); err != nil {
		return nil, err
	}

	raw, err := decompress(payload, rawLen)
	if err != nil {
		return nil, err
	}

	idx := &Index{metric: metric, dimension: int(dimension), model: string(model)}
	idx.entries = make([]entry, 0, min(int(count), 4096))
	pr := &reader{data: raw}
	for i := 0; i < int(count); i++ {
		source, err := pr.str()
		if err != nil {
			return nil, fmt.Errorf("entry %d source: %w", i, err)
		}
		text, err := pr.str()
		if err != nil {
			return nil, fmt.Errorf("entry %d text: %w", i, err)
		}
		vb, err := pr.bytes(int(dimension) * 4)
		if err != nil {
			return nil, fmt.Errorf("entry %d vector: %w", i, err)
		}
		vec := make([]float32, dimension)
		for j := range vec {
			f := math.Float32frombits(binary.LittleEndian.Uint32(vb[j*4:]))
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return nil, fmt.Errorf("entry %d has non-finite component", i)
			}
			vec[j] = f
		}
		idx.entries = append(idx.entries, newEntry(text, source, vec))
	}
	if pr.remaining() != 0 {
		return nil, fmt.Errorf("%d unread payload bytes", pr.remaining())
	}
	return idx, nil
}

func decompress(payload []byte, rawLen uint32) ([]byte, error) {
	if rawLen == 0 {
		if len(payload) != 0 {
			return nil, errors.New("payload present for empty index")
		}
		return nil, nil
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(rawLen)))
	if err != nil {
		return nil, fmt.Errorf("create decompressor: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(raw) != int(rawLen) {
		return nil, fmt.Errorf("payload is %d bytes, header says %d", len(raw), rawLen)
	}
	return raw, nil
}

func checkRatio(rawLen, payloadLen uint64) error {
	if rawLen > minRatioCheck && rawLen > payloadLen*maxCompressionRatio {
		return fmt.Errorf("payload of %d bytes expands to %d, over the %d:1 limit", payloadLen, rawLen, maxCompressionRatio)
	}
	return nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, errTruncated
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
