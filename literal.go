package main

import "encoding/binary"

// LiteralKind distinguishes the two constant shapes the pool holds.
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralString
)

// LiteralHandle is a stable index into a LiteralPool's entry table,
// assigned in first-encounter order (§4.4).
type LiteralHandle int

type literalEntry struct {
	Kind   LiteralKind
	IntVal uint64
	StrVal string
	Offset int
}

// LiteralPool interns every integer and string constant referenced by
// a resolved program, deduplicating bit-identical integers and
// byte-identical strings, and assigns each survivor a ROM offset
// (§4.4). Integers are 8-byte little-endian words; strings carry an
// 8-byte length prefix ahead of their raw bytes.
type LiteralPool struct {
	ints    map[uint64]LiteralHandle
	strs    map[string]LiteralHandle
	entries []literalEntry
}

// BuildLiteralPool walks every call site's operands across the whole
// resolved program and interns the literal ones.
func BuildLiteralPool(rp *ResolvedProgram) *LiteralPool {
	lp := &LiteralPool{ints: map[uint64]LiteralHandle{}, strs: map[string]LiteralHandle{}}
	for _, id := range rp.Order {
		for _, call := range rp.Procedures[id].Body {
			for _, arg := range call.Args {
				lp.intern(arg)
			}
		}
	}
	lp.assignOffsets()
	return lp
}

func (lp *LiteralPool) intern(id ResolvedIdent) {
	switch id.Kind {
	case IdentLiteralInt:
		if _, ok := lp.ints[id.IntVal]; ok {
			return
		}
		lp.ints[id.IntVal] = LiteralHandle(len(lp.entries))
		lp.entries = append(lp.entries, literalEntry{Kind: LiteralInt, IntVal: id.IntVal})
	case IdentLiteralString:
		if _, ok := lp.strs[id.StrVal]; ok {
			return
		}
		lp.strs[id.StrVal] = LiteralHandle(len(lp.entries))
		lp.entries = append(lp.entries, literalEntry{Kind: LiteralString, StrVal: id.StrVal})
	}
}

func entrySize(e literalEntry) int {
	if e.Kind == LiteralString {
		return 8 + len(e.StrVal)
	}
	return 8
}

func (lp *LiteralPool) assignOffsets() {
	offset := 0
	for i := range lp.entries {
		lp.entries[i].Offset = offset
		offset += entrySize(lp.entries[i])
	}
}

// OffsetOfInt reports the ROM offset of a previously-interned integer.
func (lp *LiteralPool) OffsetOfInt(v uint64) (int, bool) {
	h, ok := lp.ints[v]
	if !ok {
		return 0, false
	}
	return lp.entries[h].Offset, true
}

// OffsetOfString reports the ROM offset of a previously-interned
// string's length-prefixed record.
func (lp *LiteralPool) OffsetOfString(s string) (int, bool) {
	h, ok := lp.strs[s]
	if !ok {
		return 0, false
	}
	return lp.entries[h].Offset, true
}

// Size returns the total byte length the pool occupies in ROM.
func (lp *LiteralPool) Size() int {
	if len(lp.entries) == 0 {
		return 0
	}
	last := lp.entries[len(lp.entries)-1]
	return last.Offset + entrySize(last)
}

// Bytes serializes the pool in offset order, ready to be placed
// verbatim at the start of the ROM segment.
func (lp *LiteralPool) Bytes() []byte {
	out := make([]byte, lp.Size())
	for _, e := range lp.entries {
		switch e.Kind {
		case LiteralInt:
			binary.LittleEndian.PutUint64(out[e.Offset:], e.IntVal)
		case LiteralString:
			binary.LittleEndian.PutUint64(out[e.Offset:], uint64(len(e.StrVal)))
			copy(out[e.Offset+8:], e.StrVal)
		}
	}
	return out
}
