package codec

import (
	"io"

	"github.com/ezhuang13/codeu-project-2017/compress"
)

const (
	absentSentinel  = 0x00
	presentSentinel = 0xFF
)

type nullableSerializer[T any] struct {
	inner Serializer[T]
}

// Nullable lifts a serializer to pointers: one sentinel byte (0x00
// absent, 0xFF present) followed by the value when present. Decoding an
// absent value never touches the inner serializer.
func Nullable[T any](inner Serializer[T]) Serializer[*T] {
	return nullableSerializer[T]{inner: inner}
}

func (s nullableSerializer[T]) Write(w io.Writer, value *T) error {
	if value == nil {
		if _, err := w.Write([]byte{absentSentinel}); err != nil {
			return fail("nullable", err)
		}
		return nil
	}
	if _, err := w.Write([]byte{presentSentinel}); err != nil {
		return fail("nullable", err)
	}
	return s.inner.Write(w, *value)
}

func (s nullableSerializer[T]) Read(r io.Reader) (*T, error) {
	var sentinel [1]byte
	if err := readFull(r, sentinel[:], "nullable"); err != nil {
		return nil, err
	}
	switch sentinel[0] {
	case absentSentinel:
		return nil, nil
	case presentSentinel:
		value, err := s.inner.Read(r)
		if err != nil {
			return nil, err
		}
		return &value, nil
	default:
		return nil, fail("nullable", ErrBadLength)
	}
}

type sequenceSerializer[T any] struct {
	inner Serializer[T]
}

// Sequence lifts a serializer to homogeneous slices: a 4-byte count
// followed by that many encoded elements.
func Sequence[T any](inner Serializer[T]) Serializer[[]T] {
	return sequenceSerializer[T]{inner: inner}
}

func (s sequenceSerializer[T]) Write(w io.Writer, values []T) error {
	if len(values) > MaxSequenceLength {
		return fail("sequence", ErrBadLength)
	}
	if err := Int32.Write(w, int32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := s.inner.Write(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (s sequenceSerializer[T]) Read(r io.Reader) ([]T, error) {
	count, err := Int32.Read(r)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > MaxSequenceLength {
		return nil, fail("sequence", ErrBadLength)
	}
	values := make([]T, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := s.inner.Read(r)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Compressed carries a deflate-packed byte string. The length prefix
// counts the packed bytes, not the original ones.
var Compressed Serializer[[]byte] = compressedSerializer{}

type compressedSerializer struct{}

func (compressedSerializer) Write(w io.Writer, value []byte) error {
	packed, err := compress.Deflate(value)
	if err != nil {
		return fail("compressed", err)
	}
	return Bytes.Write(w, packed)
}

func (compressedSerializer) Read(r io.Reader) ([]byte, error) {
	packed, err := Bytes.Read(r)
	if err != nil {
		return nil, err
	}
	value, err := compress.Inflate(packed)
	if err != nil {
		return nil, fail("compressed", err)
	}
	return value, nil
}
