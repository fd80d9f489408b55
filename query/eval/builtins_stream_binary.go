package eval

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"

	"github.com/x448/float16"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// tostreamb64/fromstreamb64 give tostream/fromstream a compact wire form:
// a base64 string instead of a JSON event array, useful for shipping a
// stream of events through a single string-typed field (an env var, a log
// line). Numeric leaves are packed as IEEE 754 half-precision when that
// loses no information, full double precision otherwise, the same
// size-vs-precision tradeoff CBOR's own float16 support makes.
func init() {
	registerBuiltin("tostreamb64", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		var events []PV
		streamValue(in.Val, nil, &events)
		vals := make([]value.Value, len(events))
		for i, e := range events {
			vals[i] = e.Val
		}
		encoded, err := encodeStreamBinary(vals)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewString(encoded)}}, nil
	})
	registerBuiltin("fromstreamb64", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("fromstreamb64 input must be a string")
		}
		events, err := decodeStreamBinary(v.S)
		if err != nil {
			return value.Value{}, err
		}
		results, err := fromStreamEvents(events)
		if err != nil {
			return value.Value{}, err
		}
		out := make([]value.Value, len(results))
		for i, r := range results {
			out[i] = r.Val
		}
		return value.NewArray(out), nil
	}))
}

const (
	binTagNull = iota
	binTagFalse
	binTagTrue
	binTagHalf
	binTagDouble
	binTagString
	binTagEmptyArray
	binTagEmptyObject
)

func encodeStreamBinary(events []value.Value) (string, error) {
	var b strings.Builder
	for _, e := range events {
		if e.Kind != value.Array || len(e.A) == 0 || e.A[0].Kind != value.Array {
			return "", newError("tostreamb64 requires [path, value] or [path] events")
		}
		path := e.A[0].A
		writeByte(&b, byte(len(path)))
		for _, seg := range path {
			if seg.Kind == value.String {
				writeByte(&b, 0)
				writeString(&b, seg.S)
			} else {
				writeByte(&b, 1)
				writeNumber(&b, seg.N)
			}
		}
		if len(e.A) >= 2 {
			writeByte(&b, 1)
			if err := encodeLeaf(&b, e.A[1]); err != nil {
				return "", err
			}
		} else {
			writeByte(&b, 0)
		}
	}
	return base64.StdEncoding.EncodeToString([]byte(b.String())), nil
}

func encodeLeaf(b *strings.Builder, v value.Value) error {
	switch v.Kind {
	case value.Null:
		writeByte(b, binTagNull)
	case value.Bool:
		if v.B {
			writeByte(b, binTagTrue)
		} else {
			writeByte(b, binTagFalse)
		}
	case value.Number:
		writeNumber(b, v.N)
	case value.String:
		writeByte(b, binTagString)
		writeString(b, v.S)
	case value.Array:
		if len(v.A) != 0 {
			return newError("tostreamb64 cannot encode a non-empty array leaf")
		}
		writeByte(b, binTagEmptyArray)
	case value.ObjectKind:
		if len(v.O.Keys()) != 0 {
			return newError("tostreamb64 cannot encode a non-empty object leaf")
		}
		writeByte(b, binTagEmptyObject)
	default:
		return newError("tostreamb64 cannot encode %s", v.TypeName())
	}
	return nil
}

// writeNumber packs n as a half-precision float when that round-trips
// exactly, falling back to full double precision otherwise.
func writeNumber(b *strings.Builder, n float64) {
	h := float16.Fromfloat32(float32(n))
	if float64(h.Float32()) == n {
		writeByte(b, binTagHalf)
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(h))
		b.Write(buf[:])
		return
	}
	writeByte(b, binTagDouble)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(n))
	b.Write(buf[:])
}

func writeByte(b *strings.Builder, v byte) { b.WriteByte(v) }

func writeString(b *strings.Builder, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	b.Write(lenBuf[:])
	b.WriteString(s)
}

type binReader struct {
	data []byte
	pos  int
}

func (r *binReader) byte() (byte, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	v := r.data[r.pos]
	r.pos++
	return v, true
}

func (r *binReader) string() (string, bool) {
	if r.pos+4 > len(r.data) {
		return "", false
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if r.pos+n > len(r.data) {
		return "", false
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, true
}

func (r *binReader) number() (float64, bool) {
	tag, ok := r.byte()
	if !ok {
		return 0, false
	}
	switch tag {
	case binTagHalf:
		if r.pos+2 > len(r.data) {
			return 0, false
		}
		bits := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
		r.pos += 2
		return float64(float16.Frombits(bits).Float32()), true
	case binTagDouble:
		if r.pos+8 > len(r.data) {
			return 0, false
		}
		bits := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
		r.pos += 8
		return math.Float64frombits(bits), true
	default:
		return 0, false
	}
}

func decodeStreamBinary(encoded string) ([]value.Value, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, newError("fromstreamb64: invalid base64 input")
	}
	r := &binReader{data: raw}
	var events []value.Value
	for r.pos < len(r.data) {
		segCount, ok := r.byte()
		if !ok {
			return nil, newError("fromstreamb64: truncated stream")
		}
		path := make([]value.Value, 0, segCount)
		for i := byte(0); i < segCount; i++ {
			kind, ok := r.byte()
			if !ok {
				return nil, newError("fromstreamb64: truncated path segment")
			}
			if kind == 0 {
				s, ok := r.string()
				if !ok {
					return nil, newError("fromstreamb64: truncated path string")
				}
				path = append(path, value.NewString(s))
			} else {
				n, ok := r.number()
				if !ok {
					return nil, newError("fromstreamb64: truncated path number")
				}
				path = append(path, value.NewNumber(n))
			}
		}
		hasValue, ok := r.byte()
		if !ok {
			return nil, newError("fromstreamb64: truncated event")
		}
		if hasValue == 0 {
			events = append(events, value.NewArray([]value.Value{value.NewArray(path)}))
			continue
		}
		leaf, err := decodeLeaf(r)
		if err != nil {
			return nil, err
		}
		events = append(events, value.NewArray([]value.Value{value.NewArray(path), leaf}))
	}
	return events, nil
}

func decodeLeaf(r *binReader) (value.Value, error) {
	tag, ok := r.byte()
	if !ok {
		return value.Value{}, newError("fromstreamb64: truncated leaf")
	}
	switch tag {
	case binTagNull:
		return value.NewNull(), nil
	case binTagFalse:
		return value.NewBool(false), nil
	case binTagTrue:
		return value.NewBool(true), nil
	case binTagHalf, binTagDouble:
		r.pos--
		n, ok := r.number()
		if !ok {
			return value.Value{}, newError("fromstreamb64: truncated number")
		}
		return value.NewNumber(n), nil
	case binTagString:
		s, ok := r.string()
		if !ok {
			return value.Value{}, newError("fromstreamb64: truncated string")
		}
		return value.NewString(s), nil
	case binTagEmptyArray:
		return value.NewArray(nil), nil
	case binTagEmptyObject:
		return value.NewEmptyObject(), nil
	default:
		return value.Value{}, newError("fromstreamb64: unknown leaf tag")
	}
}
