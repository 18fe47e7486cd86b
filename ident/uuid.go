package ident

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Uuid is a hierarchical identifier: an ordered chain of 32-bit
// components. The zero value is Null. Uuid values are comparable and
// equality is structural, so they can key maps directly.
type Uuid struct {
	// packed holds the big-endian concatenation of the components.
	// Using a string keeps the type comparable.
	packed string
}

// Null is the distinguished "no reference" identifier.
var Null = Uuid{}

// FromComponents builds a Uuid from its component chain, root first.
func FromComponents(components ...uint32) Uuid {
	if len(components) == 0 {
		return Null
	}
	buf := make([]byte, 4*len(components))
	for i, c := range components {
		binary.BigEndian.PutUint32(buf[4*i:], c)
	}
	return Uuid{packed: string(buf)}
}

// Components returns the component chain, root first.
func (u Uuid) Components() []uint32 {
	if u.packed == "" {
		return nil
	}
	out := make([]uint32, len(u.packed)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32([]byte(u.packed[4*i : 4*i+4]))
	}
	return out
}

// IsNull reports whether the id is the distinguished Null value.
func (u Uuid) IsNull() bool {
	return u.packed == ""
}

// Root strips the final component, yielding the id this one was derived
// from. The root of a single-component id (and of Null) is Null.
func (u Uuid) Root() Uuid {
	if len(u.packed) <= 4 {
		return Null
	}
	return Uuid{packed: u.packed[:len(u.packed)-4]}
}

// Extend appends one component to the chain.
func (u Uuid) Extend(component uint32) Uuid {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], component)
	return Uuid{packed: u.packed + string(buf[:])}
}

// String renders the chain as dot-separated lowercase hex, e.g.
// "1.c0ffee.3f". Null renders as "null".
func (u Uuid) String() string {
	if u.IsNull() {
		return "null"
	}
	parts := u.Components()
	text := make([]string, len(parts))
	for i, p := range parts {
		text[i] = strconv.FormatUint(uint64(p), 16)
	}
	return strings.Join(text, ".")
}

// ErrInvalidUuid reports a malformed textual id.
var ErrInvalidUuid = errors.New("invalid uuid")

// Parse reads the dot-separated hex form produced by String. The literal
// "null" parses to Null.
func Parse(text string) (Uuid, error) {
	if text == "null" || text == "" {
		return Null, nil
	}
	parts := strings.Split(text, ".")
	components := make([]uint32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return Null, fmt.Errorf("%w: component %q", ErrInvalidUuid, p)
		}
		components[i] = uint32(v)
	}
	return FromComponents(components...), nil
}
