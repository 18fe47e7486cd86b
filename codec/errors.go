package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates the stream ended inside a value.
	ErrTruncated = errors.New("truncated input")
	// ErrBadLength indicates a negative or oversized length prefix.
	ErrBadLength = errors.New("malformed length prefix")
	// ErrKeyUnwrap indicates an envelope's wrapped key could not be
	// opened with the local private key.
	ErrKeyUnwrap = errors.New("key unwrap failed")
	// ErrDecrypt indicates an envelope's ciphertext failed
	// authentication.
	ErrDecrypt = errors.New("decrypt failed")
)

// Error is the single error category produced by this package. Op names
// the value being coded; Err carries the subtype sentinel or the
// underlying I/O failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fail wraps err into the codec error category, keeping an existing
// *Error intact so the innermost operation name wins.
func fail(op string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Op: op, Err: err}
}
