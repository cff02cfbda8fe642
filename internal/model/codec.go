package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Stable binary encoding: field-ordered,
// length-prefixed strings (uint32 length + UTF-8 bytes), fixed-width
// integers (int64 millis, big-endian), and explicit single-byte option tags
// (0 = absent, 1 = present followed by the value).
//
// The paste decoder first attempts the current layout (which includes
// language_is_manual); on failure it attempts the legacy layout, which omits
// that field entirely, and derives language_is_manual := language != nil.

const (
	optionAbsent  byte = 0
	optionPresent byte = 1
)

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) writeString(s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	e.buf.Write(lenBuf[:])
	e.buf.WriteString(s)
}

func (e *encoder) writeOptionalString(s *string) {
	if s == nil {
		e.buf.WriteByte(optionAbsent)
		return
	}
	e.buf.WriteByte(optionPresent)
	e.writeString(*s)
}

func (e *encoder) writeBool(b bool) {
	if b {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf.Write(b[:])
}

func (e *encoder) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeStringSlice(ss []string) {
	e.writeUint32(uint32(len(ss)))
	for _, s := range ss {
		e.writeString(s)
	}
}

type decoder struct {
	buf []byte
	off int
}

func newDecoder(b []byte) *decoder { return &decoder{buf: b} }

func (d *decoder) readString() (string, error) {
	if d.off+4 > len(d.buf) {
		return "", fmt.Errorf("truncated string length at offset %d", d.off)
	}
	n := binary.BigEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	if d.off+int(n) > len(d.buf) {
		return "", fmt.Errorf("truncated string body at offset %d", d.off)
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *decoder) readOptionalString() (*string, error) {
	if d.off+1 > len(d.buf) {
		return nil, fmt.Errorf("truncated option tag at offset %d", d.off)
	}
	tag := d.buf[d.off]
	d.off++
	switch tag {
	case optionAbsent:
		return nil, nil
	case optionPresent:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("invalid option tag %d at offset %d", tag, d.off-1)
	}
}

func (d *decoder) readBool() (bool, error) {
	if d.off+1 > len(d.buf) {
		return false, fmt.Errorf("truncated bool at offset %d", d.off)
	}
	v := d.buf[d.off]
	d.off++
	if v != 0 && v != 1 {
		return false, fmt.Errorf("invalid bool byte %d at offset %d", v, d.off-1)
	}
	return v == 1, nil
}

func (d *decoder) readInt64() (int64, error) {
	if d.off+8 > len(d.buf) {
		return 0, fmt.Errorf("truncated int64 at offset %d", d.off)
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.off : d.off+8]))
	d.off += 8
	return v, nil
}

func (d *decoder) readUint64() (uint64, error) {
	if d.off+8 > len(d.buf) {
		return 0, fmt.Errorf("truncated uint64 at offset %d", d.off)
	}
	v := binary.BigEndian.Uint64(d.buf[d.off : d.off+8])
	d.off += 8
	return v, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if d.off+4 > len(d.buf) {
		return 0, fmt.Errorf("truncated uint32 at offset %d", d.off)
	}
	v := binary.BigEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return v, nil
}

func (d *decoder) readStringSlice() ([]string, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if int(n) < 0 || int(n) > len(d.buf) {
		return nil, fmt.Errorf("implausible string slice length %d", n)
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) atEnd() bool { return d.off == len(d.buf) }

// EncodePaste serializes p under the current layout.
func EncodePaste(p *Paste) []byte {
	e := &encoder{}
	e.writeString(p.ID)
	e.writeString(p.Name)
	e.writeString(p.Content)
	e.writeOptionalString(p.Language)
	e.writeBool(p.LanguageIsManual)
	e.writeOptionalString(p.FolderID)
	e.writeInt64(p.CreatedAt.UnixMilli())
	e.writeInt64(p.UpdatedAt.UnixMilli())
	e.writeStringSlice(p.Tags)
	e.writeBool(p.IsMarkdown)
	return e.buf.Bytes()
}

// DecodePaste deserializes b, attempting the current layout first and
// falling back to the legacy layout (missing language_is_manual) on failure.
// Failure under both layouts is a hard decode error — the caller should treat
// the canonical row as corrupt.
func DecodePaste(b []byte) (*Paste, error) {
	if p, err := decodePasteCurrent(b); err == nil {
		return p, nil
	}
	p, err := decodePasteLegacy(b)
	if err != nil {
		return nil, NewSerialization("decode paste (current and legacy layouts failed)", err)
	}
	return p, nil
}

func decodePasteCurrent(b []byte) (*Paste, error) {
	d := newDecoder(b)
	p := &Paste{}
	var err error
	if p.ID, err = d.readString(); err != nil {
		return nil, err
	}
	if p.Name, err = d.readString(); err != nil {
		return nil, err
	}
	if p.Content, err = d.readString(); err != nil {
		return nil, err
	}
	if p.Language, err = d.readOptionalString(); err != nil {
		return nil, err
	}
	if p.LanguageIsManual, err = d.readBool(); err != nil {
		return nil, err
	}
	if p.FolderID, err = d.readOptionalString(); err != nil {
		return nil, err
	}
	createdMillis, err := d.readInt64()
	if err != nil {
		return nil, err
	}
	updatedMillis, err := d.readInt64()
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdMillis).UTC()
	p.UpdatedAt = time.UnixMilli(updatedMillis).UTC()
	if p.Tags, err = d.readStringSlice(); err != nil {
		return nil, err
	}
	if p.IsMarkdown, err = d.readBool(); err != nil {
		return nil, err
	}
	if !d.atEnd() {
		return nil, fmt.Errorf("trailing %d bytes after current-layout decode", len(b)-d.off)
	}
	return p, nil
}

// decodePasteLegacy decodes the pre-language_is_manual record layout and
// derives language_is_manual := language.is_some(), per the documented
// rationale: older records had no manual/auto distinction, and a concrete
// language implies a user-committed choice.
func decodePasteLegacy(b []byte) (*Paste, error) {
	d := newDecoder(b)
	p := &Paste{}
	var err error
	if p.ID, err = d.readString(); err != nil {
		return nil, err
	}
	if p.Name, err = d.readString(); err != nil {
		return nil, err
	}
	if p.Content, err = d.readString(); err != nil {
		return nil, err
	}
	if p.Language, err = d.readOptionalString(); err != nil {
		return nil, err
	}
	if p.FolderID, err = d.readOptionalString(); err != nil {
		return nil, err
	}
	createdMillis, err := d.readInt64()
	if err != nil {
		return nil, err
	}
	updatedMillis, err := d.readInt64()
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdMillis).UTC()
	p.UpdatedAt = time.UnixMilli(updatedMillis).UTC()
	if p.Tags, err = d.readStringSlice(); err != nil {
		return nil, err
	}
	if p.IsMarkdown, err = d.readBool(); err != nil {
		return nil, err
	}
	if !d.atEnd() {
		return nil, fmt.Errorf("trailing %d bytes after legacy-layout decode", len(b)-d.off)
	}
	p.LanguageIsManual = p.Language != nil
	return p, nil
}

// EncodePasteMeta serializes a derived PasteMeta row.
func EncodePasteMeta(m *PasteMeta) []byte {
	e := &encoder{}
	e.writeString(m.ID)
	e.writeString(m.Name)
	e.writeOptionalString(m.Language)
	e.writeOptionalString(m.FolderID)
	e.writeInt64(m.UpdatedAt.UnixMilli())
	e.writeStringSlice(m.Tags)
	e.writeUint64(uint64(m.ContentLen))
	e.writeBool(m.IsMarkdown)
	return e.buf.Bytes()
}

// DecodePasteMeta deserializes a derived PasteMeta row.
func DecodePasteMeta(b []byte) (*PasteMeta, error) {
	d := newDecoder(b)
	m := &PasteMeta{}
	var err error
	if m.ID, err = d.readString(); err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	if m.Name, err = d.readString(); err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	if m.Language, err = d.readOptionalString(); err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	if m.FolderID, err = d.readOptionalString(); err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	updatedMillis, err := d.readInt64()
	if err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	m.UpdatedAt = time.UnixMilli(updatedMillis).UTC()
	if m.Tags, err = d.readStringSlice(); err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	contentLen, err := d.readUint64()
	if err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	m.ContentLen = int(contentLen)
	if m.IsMarkdown, err = d.readBool(); err != nil {
		return nil, NewSerialization("decode paste meta", err)
	}
	if !d.atEnd() {
		return nil, NewSerialization("decode paste meta", fmt.Errorf("trailing %d bytes", len(b)-d.off))
	}
	return m, nil
}

// EncodeFolder serializes a Folder row.
func EncodeFolder(f *Folder) []byte {
	e := &encoder{}
	e.writeString(f.ID)
	e.writeString(f.Name)
	e.writeOptionalString(f.ParentID)
	e.writeUint64(f.PasteCount)
	return e.buf.Bytes()
}

// DecodeFolder deserializes a Folder row.
func DecodeFolder(b []byte) (*Folder, error) {
	d := newDecoder(b)
	f := &Folder{}
	var err error
	if f.ID, err = d.readString(); err != nil {
		return nil, NewSerialization("decode folder", err)
	}
	if f.Name, err = d.readString(); err != nil {
		return nil, NewSerialization("decode folder", err)
	}
	if f.ParentID, err = d.readOptionalString(); err != nil {
		return nil, NewSerialization("decode folder", err)
	}
	if f.PasteCount, err = d.readUint64(); err != nil {
		return nil, NewSerialization("decode folder", err)
	}
	if !d.atEnd() {
		return nil, NewSerialization("decode folder", fmt.Errorf("trailing %d bytes", len(b)-d.off))
	}
	return f, nil
}

// RecencyKey builds the composite (reverse_millis(updated_at), id) key used
// by the `pastes_by_updated` tree so that ascending lexicographic iteration
// yields pastes newest-first.
func RecencyKey(updatedAt time.Time, id string) []byte {
	reverseMillis := ^uint64(updatedAt.UnixMilli())
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key[:8], reverseMillis)
	copy(key[8:], id)
	return key
}
