package backup

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"

	"github.com/hupe1980/tindex"
	ihash "github.com/hupe1980/tindex/internal/hash"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/query"
)

// ErrCorrupt is returned for index streams that cannot be decoded.
var ErrCorrupt = errors.New("backup: corrupt index stream")

// Stream layout:
//
//	magic "TIB1"
//	record*   uvarint(len) payload
//	trailer   uvarint(0) uint64be(record count) uint32be(crc32c of all records)
//
// payload:
//
//	uvarint(len) keyspace
//	kind byte, value (int/float: 8 bytes big-endian, string: uvarint(len) bytes)
//	uvarint(len) entity
//	uvarint(len) packed intervals
var streamMagic = [4]byte{'T', 'I', 'B', '1'}

const (
	maxRecordSize = 64 << 20
	trailerSize   = 1 + 8 + 4
)

// record is one exact-table cell.
type record struct {
	Keyspace  string
	Value     query.Value
	Entity    string
	Intervals tindex.Intervals
}

type recordWriter struct {
	w     *bufio.Writer
	crc   hash.Hash32
	buf   []byte
	count uint64
}

func newRecordWriter(w io.Writer) (*recordWriter, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(streamMagic[:]); err != nil {
		return nil, err
	}
	return &recordWriter{w: bw, crc: ihash.NewCRC32C()}, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendValue(dst []byte, v query.Value) ([]byte, error) {
	dst = append(dst, byte(v.Kind))
	switch v.Kind {
	case query.KindInt:
		return binary.BigEndian.AppendUint64(dst, uint64(v.I64)), nil
	case query.KindFloat:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.F64)), nil
	case query.KindString:
		return appendString(dst, v.S), nil
	}
	return nil, fmt.Errorf("backup: cannot encode value of kind %s", v.Kind)
}

func (rw *recordWriter) write(r record) error {
	p := rw.buf[:0]
	p = appendString(p, r.Keyspace)
	p, err := appendValue(p, r.Value)
	if err != nil {
		return err
	}
	p = appendString(p, r.Entity)
	packed := interval.Encode(r.Intervals)
	p = binary.AppendUvarint(p, uint64(len(packed)))
	p = append(p, packed...)
	rw.buf = p

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(p)))
	if _, err := rw.w.Write(hdr[:n]); err != nil {
		return err
	}
	if _, err := rw.w.Write(p); err != nil {
		return err
	}
	rw.crc.Write(hdr[:n])
	rw.crc.Write(p)
	rw.count++
	return nil
}

// finish writes the trailer and flushes.
func (rw *recordWriter) finish() error {
	var tr [trailerSize]byte
	binary.BigEndian.PutUint64(tr[1:], rw.count)
	binary.BigEndian.PutUint32(tr[9:], rw.crc.Sum32())
	if _, err := rw.w.Write(tr[:]); err != nil {
		return err
	}
	return rw.w.Flush()
}

type recordReader struct {
	r     *bufio.Reader
	crc   hash.Hash32
	buf   []byte
	count uint64
	done  bool
}

func newRecordReader(r io.Reader) (*recordReader, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if magic != streamMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic[:])
	}
	return &recordReader{r: br, crc: ihash.NewCRC32C()}, nil
}

func corrupt(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// next returns the next record, or io.EOF after a valid trailer.
func (rr *recordReader) next() (record, error) {
	if rr.done {
		return record{}, io.EOF
	}
	n, err := binary.ReadUvarint(rr.r)
	if err != nil {
		return record{}, corrupt(err)
	}
	if n == 0 {
		var tr [trailerSize - 1]byte
		if _, err := io.ReadFull(rr.r, tr[:]); err != nil {
			return record{}, corrupt(err)
		}
		if want := binary.BigEndian.Uint64(tr[:8]); want != rr.count {
			return record{}, fmt.Errorf("%w: trailer counts %d records, read %d", ErrCorrupt, want, rr.count)
		}
		if want, got := binary.BigEndian.Uint32(tr[8:]), rr.crc.Sum32(); want != got {
			return record{}, fmt.Errorf("%w: checksum %08x, want %08x", ErrCorrupt, got, want)
		}
		rr.done = true
		return record{}, io.EOF
	}
	if n > maxRecordSize {
		return record{}, fmt.Errorf("%w: record of %d bytes", ErrCorrupt, n)
	}
	if cap(rr.buf) < int(n) {
		rr.buf = make([]byte, n)
	}
	p := rr.buf[:n]
	if _, err := io.ReadFull(rr.r, p); err != nil {
		return record{}, corrupt(err)
	}
	var hdr [binary.MaxVarintLen64]byte
	rr.crc.Write(hdr[:binary.PutUvarint(hdr[:], n)])
	rr.crc.Write(p)
	rec, err := decodeRecord(p)
	if err != nil {
		return record{}, err
	}
	rr.count++
	return rec, nil
}

type decoder struct {
	p   []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.p)
	if n <= 0 {
		d.err = fmt.Errorf("%w: bad length", ErrCorrupt)
		return 0
	}
	d.p = d.p[n:]
	return v
}

func (d *decoder) bytes(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.p)) {
		d.err = fmt.Errorf("%w: field of %d bytes exceeds record", ErrCorrupt, n)
		return nil
	}
	b := d.p[:n]
	d.p = d.p[n:]
	return b
}

func (d *decoder) string() string {
	return string(d.bytes(d.uvarint()))
}

func decodeRecord(p []byte) (record, error) {
	d := &decoder{p: p}
	var rec record
	rec.Keyspace = d.string()

	kind := d.bytes(1)
	if d.err == nil {
		switch query.Kind(kind[0]) {
		case query.KindInt:
			if b := d.bytes(8); b != nil {
				rec.Value = query.Int(int64(binary.BigEndian.Uint64(b)))
			}
		case query.KindFloat:
			if b := d.bytes(8); b != nil {
				rec.Value = query.Float(math.Float64frombits(binary.BigEndian.Uint64(b)))
			}
		case query.KindString:
			rec.Value = query.String(d.string())
		default:
			d.err = fmt.Errorf("%w: unknown value kind %d", ErrCorrupt, kind[0])
		}
	}

	rec.Entity = d.string()
	packed := d.bytes(d.uvarint())
	if d.err != nil {
		return record{}, d.err
	}
	if len(d.p) != 0 {
		return record{}, fmt.Errorf("%w: %d trailing bytes in record", ErrCorrupt, len(d.p))
	}
	l, err := interval.Decode(packed)
	if err != nil {
		return record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec.Intervals = l
	return rec, nil
}
