package webserve

import "io"

// bodyKind discriminates the shape of a Body.
type bodyKind uint8

const (
	bodyString bodyKind = iota
	bodyBinary
	bodyCompound
)

// Body is the payload of a Response. It is a closed variant with three
// shapes: a text string, raw binary bytes, or a compound sequence of other
// Body values. Compound exists so the composer can prepend/append chunk
// framing around a payload without copying it.
type Body struct {
	kind   bodyKind
	text   string
	binary []byte
	parts  []Body
}

// StringBody wraps a UTF-8 string as a Body.
func StringBody(text string) Body {
	return Body{kind: bodyString, text: text}
}

// BinaryBody wraps raw bytes as a Body.
func BinaryBody(b []byte) Body {
	return Body{kind: bodyBinary, binary: b}
}

// CompoundBody concatenates parts, in order, into a single Body.
func CompoundBody(parts ...Body) Body {
	return Body{kind: bodyCompound, parts: parts}
}

// Len returns the total number of bytes the Body will produce, recursing
// into Compound parts.
func (b Body) Len() int {
	switch b.kind {
	case bodyString:
		return len(b.text)
	case bodyBinary:
		return len(b.binary)
	case bodyCompound:
		n := 0
		for _, p := range b.parts {
			n += p.Len()
		}
		return n
	default:
		return 0
	}
}

// WriteTo writes the leaves of the Body, in order, to w.
func (b Body) WriteTo(w io.Writer) (int64, error) {
	switch b.kind {
	case bodyString:
		n, err := io.WriteString(w, b.text)
		return int64(n), err
	case bodyBinary:
		n, err := w.Write(b.binary)
		return int64(n), err
	case bodyCompound:
		var total int64
		for _, p := range b.parts {
			n, err := p.WriteTo(w)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	default:
		return 0, nil
	}
}

// Bytes flattens the Body into a single byte slice.
func (b Body) Bytes() []byte {
	buf := make([]byte, 0, b.Len())
	switch b.kind {
	case bodyString:
		buf = append(buf, b.text...)
	case bodyBinary:
		buf = append(buf, b.binary...)
	case bodyCompound:
		for _, p := range b.parts {
			buf = append(buf, p.Bytes()...)
		}
	}
	return buf
}
