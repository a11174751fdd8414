package value

import "bytes"

// Text is an immutable byte sequence. A nil Bytes with NA set true is the
// N/A value; a non-nil (possibly zero-length) Bytes is a present value,
// distinguishing "empty text" from "no text".
type Text struct {
	Bytes []byte
	na    bool
}

func NAText() Text { return Text{na: true} }

func NewText(b []byte) Text {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Text{Bytes: cp}
}

func TextFromString(s string) Text {
	return Text{Bytes: []byte(s)}
}

func (t Text) IsNA() bool { return t.na }

func (t Text) String() string {
	if t.na {
		return ""
	}
	return string(t.Bytes)
}

func (t Text) Match(o Text) bool {
	if t.na && o.na {
		return true
	}
	if t.na || o.na {
		return false
	}
	return bytes.Equal(t.Bytes, o.Bytes)
}

// Less is byte-wise lexicographic order; N/A sorts last.
func (t Text) Less(o Text) bool {
	if t.na {
		return false
	}
	if o.na {
		return true
	}
	return bytes.Compare(t.Bytes, o.Bytes) < 0
}

func (t Text) Compare(o Text) int {
	switch {
	case t.na && o.na:
		return 0
	case t.na:
		return 1
	case o.na:
		return -1
	default:
		return bytes.Compare(t.Bytes, o.Bytes)
	}
}
