// Package stacks is a thin client for read-only Stacks contract calls. It
// speaks the Hiro call-read HTTP API and decodes the Clarity wire encoding
// returned by the node into plain Go values, keeping chain-encoding quirks
// out of the domain layer.
package stacks

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Clarity wire type tags.
const (
	tagInt               = 0x00
	tagUint              = 0x01
	tagBuffer            = 0x02
	tagBoolTrue          = 0x03
	tagBoolFalse         = 0x04
	tagPrincipal         = 0x05
	tagContractPrincipal = 0x06
	tagResponseOk        = 0x07
	tagResponseErr       = 0x08
	tagNone              = 0x09
	tagSome              = 0x0a
	tagList              = 0x0b
	tagTuple             = 0x0c
	tagStringASCII       = 0x0d
	tagStringUTF8        = 0x0e
)

// Value is a decoded Clarity value. Exactly one of the payload fields is
// meaningful depending on Type.
type Value struct {
	Type  byte
	Uint  uint64           // int and uint values (must fit in uint64)
	Str   string           // strings and principals (c32-rendered address)
	Bytes []byte           // buffer payload
	List  []Value          // list elements
	Tuple map[string]Value // tuple fields by name
	Inner *Value           // some / ok / err payload
}

// IsNone reports whether the value is the optional none.
func (v Value) IsNone() bool { return v.Type == tagNone }

// Unwrap strips optional-some and response-ok wrappers, mirroring how
// consumers want the payload rather than the envelope.
func (v Value) Unwrap() Value {
	for v.Type == tagSome || v.Type == tagResponseOk {
		v = *v.Inner
	}
	return v
}

// AsUint returns the numeric payload of an int or uint value.
func (v Value) AsUint() (uint64, error) {
	v = v.Unwrap()
	if v.Type != tagUint && v.Type != tagInt {
		return 0, fmt.Errorf("clarity: expected uint, got tag 0x%02x", v.Type)
	}
	return v.Uint, nil
}

// AsBool returns the payload of a boolean value.
func (v Value) AsBool() (bool, error) {
	v = v.Unwrap()
	switch v.Type {
	case tagBoolTrue:
		return true, nil
	case tagBoolFalse:
		return false, nil
	default:
		return false, fmt.Errorf("clarity: expected bool, got tag 0x%02x", v.Type)
	}
}

// AsString returns the payload of a string or principal value.
func (v Value) AsString() (string, error) {
	v = v.Unwrap()
	switch v.Type {
	case tagStringASCII, tagStringUTF8, tagPrincipal, tagContractPrincipal:
		return v.Str, nil
	default:
		return "", fmt.Errorf("clarity: expected string, got tag 0x%02x", v.Type)
	}
}

// field looks up a tuple field, unwrapping the receiver first. The second
// return is false when the field is absent or none.
func (v Value) field(name string) (Value, bool) {
	v = v.Unwrap()
	if v.Type != tagTuple {
		return Value{}, false
	}
	f, ok := v.Tuple[name]
	if !ok || f.IsNone() {
		return Value{}, false
	}
	return f, true
}

// UintField extracts a required numeric tuple field.
func (v Value) UintField(name string) (uint64, error) {
	f, ok := v.field(name)
	if !ok {
		return 0, fmt.Errorf("clarity: tuple field %q missing", name)
	}
	n, err := f.AsUint()
	if err != nil {
		return 0, fmt.Errorf("clarity: tuple field %q: %w", name, err)
	}
	return n, nil
}

// OptUintField extracts an optional numeric tuple field. An absent field or a
// none value yields ok=false with no error.
func (v Value) OptUintField(name string) (uint64, bool, error) {
	f, ok := v.field(name)
	if !ok {
		return 0, false, nil
	}
	n, err := f.AsUint()
	if err != nil {
		return 0, false, fmt.Errorf("clarity: tuple field %q: %w", name, err)
	}
	return n, true, nil
}

// BoolField extracts a required boolean tuple field.
func (v Value) BoolField(name string) (bool, error) {
	f, ok := v.field(name)
	if !ok {
		return false, fmt.Errorf("clarity: tuple field %q missing", name)
	}
	b, err := f.AsBool()
	if err != nil {
		return false, fmt.Errorf("clarity: tuple field %q: %w", name, err)
	}
	return b, nil
}

// StringField extracts a required string or principal tuple field.
func (v Value) StringField(name string) (string, error) {
	f, ok := v.field(name)
	if !ok {
		return "", fmt.Errorf("clarity: tuple field %q missing", name)
	}
	s, err := f.AsString()
	if err != nil {
		return "", fmt.Errorf("clarity: tuple field %q: %w", name, err)
	}
	return s, nil
}

// DecodeHex decodes a 0x-prefixed Clarity hex string into a Value.
func DecodeHex(s string) (Value, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Value{}, fmt.Errorf("clarity: invalid hex: %w", err)
	}
	d := &decoder{buf: raw}
	v, err := d.value()
	if err != nil {
		return Value{}, err
	}
	if d.pos != len(d.buf) {
		return Value{}, fmt.Errorf("clarity: %d trailing bytes after value", len(d.buf)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("clarity: truncated value (want %d bytes at offset %d, have %d)", n, d.pos, len(d.buf)-d.pos)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) value() (Value, error) {
	tb, err := d.take(1)
	if err != nil {
		return Value{}, err
	}
	tag := tb[0]

	switch tag {
	case tagInt, tagUint:
		b, err := d.take(16)
		if err != nil {
			return Value{}, err
		}
		// 128-bit on the wire; everything this contract emits fits in 64.
		for _, hi := range b[:8] {
			if hi != 0 {
				return Value{}, fmt.Errorf("clarity: integer exceeds uint64 range")
			}
		}
		return Value{Type: tag, Uint: binary.BigEndian.Uint64(b[8:])}, nil

	case tagBuffer:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return Value{}, err
		}
		out := make([]byte, n)
		copy(out, b)
		return Value{Type: tag, Bytes: out}, nil

	case tagBoolTrue, tagBoolFalse, tagNone:
		return Value{Type: tag}, nil

	case tagPrincipal:
		b, err := d.take(21)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: tag, Str: c32Address(b[0], b[1:])}, nil

	case tagContractPrincipal:
		b, err := d.take(21)
		if err != nil {
			return Value{}, err
		}
		addr := c32Address(b[0], b[1:])
		nb, err := d.take(1)
		if err != nil {
			return Value{}, err
		}
		name, err := d.take(int(nb[0]))
		if err != nil {
			return Value{}, err
		}
		return Value{Type: tag, Str: addr + "." + string(name)}, nil

	case tagResponseOk, tagResponseErr, tagSome:
		inner, err := d.value()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: tag, Inner: &inner}, nil

	case tagList:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := d.value()
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Type: tag, List: items}, nil

	case tagTuple:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		fields := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			nb, err := d.take(1)
			if err != nil {
				return Value{}, err
			}
			name, err := d.take(int(nb[0]))
			if err != nil {
				return Value{}, err
			}
			val, err := d.value()
			if err != nil {
				return Value{}, err
			}
			fields[string(name)] = val
		}
		return Value{Type: tag, Tuple: fields}, nil

	case tagStringASCII, tagStringUTF8:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return Value{}, err
		}
		return Value{Type: tag, Str: string(b)}, nil

	default:
		return Value{}, fmt.Errorf("clarity: unknown type tag 0x%02x", tag)
	}
}

// EncodeUint renders a uint as a 0x-prefixed Clarity hex argument.
func EncodeUint(v uint64) string {
	buf := make([]byte, 17)
	buf[0] = tagUint
	binary.BigEndian.PutUint64(buf[9:], v)
	return "0x" + hex.EncodeToString(buf)
}

// c32Alphabet is the Crockford-style base32 alphabet used by Stacks
// addresses (no I, L, O, or U).
const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// c32Encode base32-encodes data, preserving each leading zero byte as a
// literal '0' character.
func c32Encode(data []byte) string {
	n := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, c32Alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, '0')
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// c32Address renders a principal's version byte and hash160 as a Stacks
// address ("SP…" on mainnet, "ST…" on testnet). The 4-byte checksum is the
// leading bytes of sha256(sha256(version ‖ hash)).
func c32Address(version byte, hash []byte) string {
	payload := make([]byte, 0, len(hash)+1)
	payload = append(payload, version)
	payload = append(payload, hash...)
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])

	data := make([]byte, 0, len(hash)+4)
	data = append(data, hash...)
	data = append(data, second[:4]...)

	return "S" + string(c32Alphabet[version&0x1f]) + c32Encode(data)
}
