// Package wire implementa a codificação posicional dos argumentos e retornos
// das operações do mercado. Cada campo é gravado na ordem declarada, em
// little-endian, sem nomes nem delimitadores:
//
//	u8     1 byte
//	bool   1 byte (0 ou 1)
//	u64    8 bytes
//	f64    8 bytes (IEEE-754)
//	string u32 (tamanho) + bytes UTF-8
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrShortBuffer = errors.New("wire: buffer too short")
	ErrInvalidBool = errors.New("wire: invalid bool byte")
)

// Args acumula campos para serialização.
type Args struct {
	buf []byte
}

func NewArgs() *Args { return &Args{buf: make([]byte, 0, 64)} }

func (a *Args) AddU8(v uint8) *Args {
	a.buf = append(a.buf, v)
	return a
}

func (a *Args) AddBool(v bool) *Args {
	if v {
		return a.AddU8(1)
	}
	return a.AddU8(0)
}

func (a *Args) AddU64(v uint64) *Args {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
	return a
}

func (a *Args) AddF64(v float64) *Args {
	return a.AddU64(math.Float64bits(v))
}

func (a *Args) AddString(s string) *Args {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(len(s)))
	a.buf = append(a.buf, s...)
	return a
}

// Serialize devolve os bytes acumulados.
func (a *Args) Serialize() []byte { return a.buf }

// Reader consome campos na mesma ordem em que foram gravados.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining retorna quantos bytes ainda não foram lidos.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int, field string) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%s at offset %d: %w", field, r.off, ErrShortBuffer)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) NextU8() (uint8, error) {
	b, err := r.take(1, "u8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) NextBool() (bool, error) {
	b, err := r.take(1, "bool")
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("bool at offset %d: %w", r.off-1, ErrInvalidBool)
}

func (r *Reader) NextU64() (uint64, error) {
	b, err := r.take(8, "u64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) NextF64() (float64, error) {
	v, err := r.NextU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) NextString() (string, error) {
	hdr, err := r.take(4, "string length")
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(hdr)
	if uint64(n) > uint64(r.Remaining()) {
		return "", fmt.Errorf("string of %d bytes at offset %d: %w", n, r.off, ErrShortBuffer)
	}
	b, _ := r.take(int(n), "string")
	return string(b), nil
}
