package codec

import (
	"encoding/binary"
	"io"
	"strings"
	"time"

	"github.com/ezhuang13/codeu-project-2017/ident"
)

// Serializer encodes and decodes one value type over a byte stream.
type Serializer[T any] interface {
	Write(w io.Writer, value T) error
	Read(r io.Reader) (T, error)
}

// MaxBytesLength caps a single length-prefixed byte string (1MB).
const MaxBytesLength = 1024 * 1024

// MaxSequenceLength caps the element count of a single sequence.
const MaxSequenceLength = 65536

// Exported serializer instances for the wire primitives.
var (
	Int32  Serializer[int32]      = int32Serializer{}
	Int64  Serializer[int64]      = int64Serializer{}
	Bytes  Serializer[[]byte]     = bytesSerializer{}
	String Serializer[string]     = stringSerializer{}
	Uuid   Serializer[ident.Uuid] = uuidSerializer{}
	Time   Serializer[time.Time]  = timeSerializer{}
)

func readFull(r io.Reader, buf []byte, op string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fail(op, ErrTruncated)
		}
		return fail(op, err)
	}
	return nil
}

type int32Serializer struct{}

func (int32Serializer) Write(w io.Writer, value int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(value))
	if _, err := w.Write(buf[:]); err != nil {
		return fail("int32", err)
	}
	return nil
}

func (int32Serializer) Read(r io.Reader) (int32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:], "int32"); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

type int64Serializer struct{}

func (int64Serializer) Write(w io.Writer, value int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(value))
	if _, err := w.Write(buf[:]); err != nil {
		return fail("int64", err)
	}
	return nil
}

func (int64Serializer) Read(r io.Reader) (int64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:], "int64"); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

type bytesSerializer struct{}

func (bytesSerializer) Write(w io.Writer, value []byte) error {
	if len(value) > MaxBytesLength {
		return fail("bytes", ErrBadLength)
	}
	if err := Int32.Write(w, int32(len(value))); err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		return fail("bytes", err)
	}
	return nil
}

func (bytesSerializer) Read(r io.Reader) ([]byte, error) {
	length, err := Int32.Read(r)
	if err != nil {
		return nil, err
	}
	if length < 0 || length > MaxBytesLength {
		return nil, fail("bytes", ErrBadLength)
	}
	buf := make([]byte, length)
	if err := readFull(r, buf, "bytes"); err != nil {
		return nil, err
	}
	return buf, nil
}

// stringSerializer uses one byte per character (Latin-1). Runes above
// 0xFF are not representable and degrade to '?'.
type stringSerializer struct{}

func (stringSerializer) Write(w io.Writer, value string) error {
	encoded := make([]byte, 0, len(value))
	for _, r := range value {
		if r > 0xFF {
			r = '?'
		}
		encoded = append(encoded, byte(r))
	}
	if err := Bytes.Write(w, encoded); err != nil {
		return fail("string", err)
	}
	return nil
}

func (stringSerializer) Read(r io.Reader) (string, error) {
	raw, err := Bytes.Read(r)
	if err != nil {
		return "", fail("string", err)
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return b.String(), nil
}

// uuidSerializer writes the component count followed by each 32-bit
// component, root first. Null encodes as a zero count.
type uuidSerializer struct{}

func (uuidSerializer) Write(w io.Writer, value ident.Uuid) error {
	components := value.Components()
	if err := Int32.Write(w, int32(len(components))); err != nil {
		return fail("uuid", err)
	}
	for _, c := range components {
		if err := Int32.Write(w, int32(c)); err != nil {
			return fail("uuid", err)
		}
	}
	return nil
}

func (uuidSerializer) Read(r io.Reader) (ident.Uuid, error) {
	count, err := Int32.Read(r)
	if err != nil {
		return ident.Null, fail("uuid", err)
	}
	if count < 0 || count > MaxSequenceLength {
		return ident.Null, fail("uuid", ErrBadLength)
	}
	components := make([]uint32, count)
	for i := range components {
		c, err := Int32.Read(r)
		if err != nil {
			return ident.Null, fail("uuid", err)
		}
		components[i] = uint32(c)
	}
	return ident.FromComponents(components...), nil
}

// timeSerializer carries a timestamp as milliseconds since the Unix
// epoch. Sub-millisecond precision does not survive the wire.
type timeSerializer struct{}

func (timeSerializer) Write(w io.Writer, value time.Time) error {
	return Int64.Write(w, value.UnixMilli())
}

func (timeSerializer) Read(r io.Reader) (time.Time, error) {
	ms, err := Int64.Read(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
