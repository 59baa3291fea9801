package record

import (
	"fmt"
	"math"

	"github.com/cockroachdb/apd/v3"
	"github.com/fiberdb/core/internal/errs"
)

// Sizeof returns the exact number of bytes Encode will write for v. Callers
// that build a tree of partially-unchanged and partially-rewritten values
// (the update engine's field tree) rely on Sizeof being a pure function of
// v's content, with no side effects, so that a two-pass size-then-store
// serializer can allocate exactly once.
func Sizeof(v Value) int {
	if v.raw != nil {
		return len(v.raw)
	}
	switch v.kind {
	case KindNil, KindBool:
		return 1
	case KindUint:
		return 1 + sizeofUint(v.u)
	case KindInt:
		return 1 + sizeofInt(v.i)
	case KindFloat32:
		return 1 + 4
	case KindFloat64:
		return 1 + 8
	case KindString:
		return 1 + lenPrefixSize(len(v.str)) + len(v.str)
	case KindBinary:
		return 1 + lenPrefixSize(len(v.bin)) + len(v.bin)
	case KindArray:
		n := 1 + 4
		for _, c := range v.arr {
			n += Sizeof(c)
		}
		return n
	case KindMap:
		n := 1 + 4
		for i, k := range v.mp.Keys {
			n += 1 + lenPrefixSize(len(k)) + len(k)
			n += Sizeof(v.mp.Values[i])
		}
		return n
	case KindDecimal:
		payload := decimalPayloadSize(v.dec)
		return 1 + 1 + 4 + payload // tagExt8, ext-type byte, length, payload
	default:
		return 1
	}
}

func sizeofUint(u uint64) int {
	switch {
	case u <= math.MaxUint8:
		return 1
	case u <= math.MaxUint16:
		return 2
	case u <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

func sizeofInt(i int64) int {
	switch {
	case i >= math.MinInt8 && i <= math.MaxInt8:
		return 1
	case i >= math.MinInt16 && i <= math.MaxInt16:
		return 2
	case i >= math.MinInt32 && i <= math.MaxInt32:
		return 4
	default:
		return 8
	}
}

func lenPrefixSize(n int) int {
	switch {
	case n <= math.MaxUint8:
		return 1
	case n <= math.MaxUint16:
		return 2
	default:
		return 4
	}
}

func decimalPayloadSize(d *apd.Decimal) int {
	return len(d.String())
}

// Encode appends the wire encoding of v to dst and returns the result. It
// must write exactly Sizeof(v) bytes.
func Encode(dst []byte, v Value) []byte {
	if v.raw != nil {
		return append(dst, v.raw...)
	}
	switch v.kind {
	case KindNil:
		return append(dst, byte(tagNil))
	case KindBool:
		if v.b {
			return append(dst, byte(tagTrue))
		}
		return append(dst, byte(tagFalse))
	case KindUint:
		return encodeUint(dst, v.u)
	case KindInt:
		return encodeInt(dst, v.i)
	case KindFloat32:
		dst = append(dst, byte(tagFloat32))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], math.Float32bits(v.f32))
		return append(dst, buf[:]...)
	case KindFloat64:
		dst = append(dst, byte(tagFloat64))
		var buf [8]byte
		byteOrder.PutUint64(buf[:], math.Float64bits(v.f64))
		return append(dst, buf[:]...)
	case KindString:
		return encodeLenPrefixed(dst, tagStr8, tagStr16, tagStr32, []byte(v.str))
	case KindBinary:
		return encodeLenPrefixed(dst, tagBin8, tagBin16, tagBin32, v.bin)
	case KindArray:
		dst = append(dst, byte(tagArray32))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], uint32(len(v.arr)))
		dst = append(dst, buf[:]...)
		for _, c := range v.arr {
			dst = Encode(dst, c)
		}
		return dst
	case KindMap:
		dst = append(dst, byte(tagMap32))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], uint32(len(v.mp.Keys)))
		dst = append(dst, buf[:]...)
		for i, k := range v.mp.Keys {
			dst = encodeLenPrefixed(dst, tagStr8, tagStr16, tagStr32, []byte(k))
			dst = Encode(dst, v.mp.Values[i])
		}
		return dst
	case KindDecimal:
		payload := []byte(v.dec.String())
		dst = append(dst, byte(tagExt8), byte(ExtDecimal))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], uint32(len(payload)))
		dst = append(dst, buf[:]...)
		return append(dst, payload...)
	default:
		return append(dst, byte(tagNil))
	}
}

func encodeUint(dst []byte, u uint64) []byte {
	switch n := sizeofUint(u); n {
	case 1:
		return append(dst, byte(tagUint8), byte(u))
	case 2:
		dst = append(dst, byte(tagUint16))
		var buf [2]byte
		byteOrder.PutUint16(buf[:], uint16(u))
		return append(dst, buf[:]...)
	case 4:
		dst = append(dst, byte(tagUint32))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], uint32(u))
		return append(dst, buf[:]...)
	default:
		dst = append(dst, byte(tagUint64))
		var buf [8]byte
		byteOrder.PutUint64(buf[:], u)
		return append(dst, buf[:]...)
	}
}

func encodeInt(dst []byte, i int64) []byte {
	switch n := sizeofInt(i); n {
	case 1:
		return append(dst, byte(tagInt8), byte(i))
	case 2:
		dst = append(dst, byte(tagInt16))
		var buf [2]byte
		byteOrder.PutUint16(buf[:], uint16(i))
		return append(dst, buf[:]...)
	case 4:
		dst = append(dst, byte(tagInt32))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], uint32(i))
		return append(dst, buf[:]...)
	default:
		dst = append(dst, byte(tagInt64))
		var buf [8]byte
		byteOrder.PutUint64(buf[:], uint64(i))
		return append(dst, buf[:]...)
	}
}

func encodeLenPrefixed(dst []byte, t8, t16, t32 tag, payload []byte) []byte {
	switch lenPrefixSize(len(payload)) {
	case 1:
		dst = append(dst, byte(t8), byte(len(payload)))
	case 2:
		dst = append(dst, byte(t16))
		var buf [2]byte
		byteOrder.PutUint16(buf[:], uint16(len(payload)))
		dst = append(dst, buf[:]...)
	default:
		dst = append(dst, byte(t32))
		var buf [4]byte
		byteOrder.PutUint32(buf[:], uint32(len(payload)))
		dst = append(dst, buf[:]...)
	}
	return append(dst, payload...)
}

// Decode decodes one value starting at src[0], returning the value and the
// number of bytes consumed.
//
// The returned Value retains the exact span of src it was read from (raw).
// A value that survives untouched through the update engine's field tree
// is re-emitted by Sizeof/Encode's raw fast path, which copies that span
// directly instead of re-walking decoded fields — the NOP case this
// format exists to make cheap ("without re-encoding unchanged regions").
func Decode(src []byte) (Value, int, error) {
	v, n, err := decode(src)
	if err != nil {
		return Value{}, 0, err
	}
	v.raw = src[:n]
	return v, n, nil
}

func decode(src []byte) (Value, int, error) {
	if len(src) == 0 {
		return Value{}, 0, errs.New(errs.IllegalParams, "record.Decode: empty input")
	}
	t := tag(src[0])
	switch t {
	case tagNil:
		return Nil(), 1, nil
	case tagFalse:
		return Bool(false), 1, nil
	case tagTrue:
		return Bool(true), 1, nil
	case tagUint8:
		if len(src) < 2 {
			return Value{}, 0, shortRead("uint8")
		}
		return Uint(uint64(src[1])), 2, nil
	case tagUint16:
		if len(src) < 3 {
			return Value{}, 0, shortRead("uint16")
		}
		return Uint(uint64(byteOrder.Uint16(src[1:3]))), 3, nil
	case tagUint32:
		if len(src) < 5 {
			return Value{}, 0, shortRead("uint32")
		}
		return Uint(uint64(byteOrder.Uint32(src[1:5]))), 5, nil
	case tagUint64:
		if len(src) < 9 {
			return Value{}, 0, shortRead("uint64")
		}
		return Uint(byteOrder.Uint64(src[1:9])), 9, nil
	case tagInt8:
		if len(src) < 2 {
			return Value{}, 0, shortRead("int8")
		}
		return Int(int64(int8(src[1]))), 2, nil
	case tagInt16:
		if len(src) < 3 {
			return Value{}, 0, shortRead("int16")
		}
		return Int(int64(int16(byteOrder.Uint16(src[1:3])))), 3, nil
	case tagInt32:
		if len(src) < 5 {
			return Value{}, 0, shortRead("int32")
		}
		return Int(int64(int32(byteOrder.Uint32(src[1:5])))), 5, nil
	case tagInt64:
		if len(src) < 9 {
			return Value{}, 0, shortRead("int64")
		}
		return Int(int64(byteOrder.Uint64(src[1:9]))), 9, nil
	case tagFloat32:
		if len(src) < 5 {
			return Value{}, 0, shortRead("float32")
		}
		return Float32(math.Float32frombits(byteOrder.Uint32(src[1:5]))), 5, nil
	case tagFloat64:
		if len(src) < 9 {
			return Value{}, 0, shortRead("float64")
		}
		return Float64(math.Float64frombits(byteOrder.Uint64(src[1:9]))), 9, nil
	case tagStr8, tagStr16, tagStr32:
		b, n, err := decodeLenPrefixed(src)
		if err != nil {
			return Value{}, 0, err
		}
		return String(string(b)), n, nil
	case tagBin8, tagBin16, tagBin32:
		b, n, err := decodeLenPrefixed(src)
		if err != nil {
			return Value{}, 0, err
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		return Binary(cp), n, nil
	case tagArray16, tagArray32:
		return decodeArray(src, t)
	case tagMap16, tagMap32:
		return decodeMap(src, t)
	case tagExt8:
		return decodeExt(src)
	default:
		return Value{}, 0, errs.New(errs.IllegalParams, fmt.Sprintf("record.Decode: unknown tag %d", t))
	}
}

func shortRead(what string) error {
	return errs.New(errs.IllegalParams, "record.Decode: short read decoding "+what)
}

func decodeLenPrefixed(src []byte) ([]byte, int, error) {
	t := tag(src[0])
	var length, headerLen int
	switch t {
	case tagStr8, tagBin8:
		if len(src) < 2 {
			return nil, 0, shortRead("len8")
		}
		length, headerLen = int(src[1]), 2
	case tagStr16, tagBin16:
		if len(src) < 3 {
			return nil, 0, shortRead("len16")
		}
		length, headerLen = int(byteOrder.Uint16(src[1:3])), 3
	default:
		if len(src) < 5 {
			return nil, 0, shortRead("len32")
		}
		length, headerLen = int(byteOrder.Uint32(src[1:5])), 5
	}
	if len(src) < headerLen+length {
		return nil, 0, shortRead("payload")
	}
	return src[headerLen : headerLen+length], headerLen + length, nil
}

func decodeArray(src []byte, t tag) (Value, int, error) {
	var count, headerLen int
	switch t {
	case tagArray16:
		if len(src) < 3 {
			return Value{}, 0, shortRead("array16")
		}
		count, headerLen = int(byteOrder.Uint16(src[1:3])), 3
	default:
		if len(src) < 5 {
			return Value{}, 0, shortRead("array32")
		}
		count, headerLen = int(byteOrder.Uint32(src[1:5])), 5
	}
	off := headerLen
	elems := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		v, n, err := Decode(src[off:])
		if err != nil {
			return Value{}, 0, err
		}
		elems = append(elems, v)
		off += n
	}
	return Array(elems), off, nil
}

func decodeMap(src []byte, t tag) (Value, int, error) {
	var count, headerLen int
	switch t {
	case tagMap16:
		if len(src) < 3 {
			return Value{}, 0, shortRead("map16")
		}
		count, headerLen = int(byteOrder.Uint16(src[1:3])), 3
	default:
		if len(src) < 5 {
			return Value{}, 0, shortRead("map32")
		}
		count, headerLen = int(byteOrder.Uint32(src[1:5])), 5
	}
	off := headerLen
	m := &MapValue{Keys: make([]string, 0, count), Values: make([]Value, 0, count)}
	for i := 0; i < count; i++ {
		key, n, err := decodeLenPrefixed(src[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n
		val, n2, err := Decode(src[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n2
		m.Keys = append(m.Keys, string(key))
		m.Values = append(m.Values, val)
	}
	return Map(m), off, nil
}

func decodeExt(src []byte) (Value, int, error) {
	if len(src) < 6 {
		return Value{}, 0, shortRead("ext header")
	}
	extType := ExtType(src[1])
	length := int(byteOrder.Uint32(src[2:6]))
	if len(src) < 6+length {
		return Value{}, 0, shortRead("ext payload")
	}
	payload := src[6 : 6+length]
	switch extType {
	case ExtDecimal:
		d, _, err := apd.NewFromString(string(payload))
		if err != nil {
			return Value{}, 0, errs.Wrap(errs.UpdateFieldType, "record.Decode: invalid decimal ext payload", err)
		}
		return Decimal(d), 6 + length, nil
	default:
		return Value{}, 0, errs.New(errs.IllegalParams, fmt.Sprintf("record.Decode: unknown ext type %d", extType))
	}
}
