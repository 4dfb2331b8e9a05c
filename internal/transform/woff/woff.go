// Package woff wraps TrueType/OpenType fonts into the WOFF 1.0 container.
package woff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zlib"
)

var ErrNotSfnt = errors.New("not a TrueType/OpenType font")

const (
	sfntHeaderSize  = 12
	sfntEntrySize   = 16
	woffHeaderSize  = 44
	woffEntrySize   = 20
	woffSignature   = 0x774F4646 // "wOFF"
	maxTableEntries = 0x1000
)

type table struct {
	tag      uint32
	checksum uint32
	data     []byte
	packed   []byte
}

// Convert returns the WOFF encoding of an sfnt font. Tables are zlib
// compressed when that makes them smaller and stored as-is otherwise.
func Convert(ttf []byte) ([]byte, error) {
	if len(ttf) < sfntHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotSfnt, len(ttf))
	}
	flavor := binary.BigEndian.Uint32(ttf[0:4])
	switch flavor {
	case 0x00010000, 0x4F54544F, 0x74727565: // 1.0, "OTTO", "true"
	default:
		return nil, fmt.Errorf("%w: flavor %#08x", ErrNotSfnt, flavor)
	}

	numTables := int(binary.BigEndian.Uint16(ttf[4:6]))
	if numTables == 0 || numTables > maxTableEntries {
		return nil, fmt.Errorf("%w: %d tables", ErrNotSfnt, numTables)
	}
	if len(ttf) < sfntHeaderSize+numTables*sfntEntrySize {
		return nil, fmt.Errorf("%w: truncated table directory", ErrNotSfnt)
	}

	tables := make([]table, numTables)
	sfntSize := uint32(sfntHeaderSize + numTables*sfntEntrySize)
	for i := range tables {
		entry := ttf[sfntHeaderSize+i*sfntEntrySize:]
		offset := binary.BigEndian.Uint32(entry[8:12])
		length := binary.BigEndian.Uint32(entry[12:16])
		if uint64(offset)+uint64(length) > uint64(len(ttf)) {
			return nil, fmt.Errorf("%w: table %q out of bounds", ErrNotSfnt, entry[0:4])
		}

		t := table{
			tag:      binary.BigEndian.Uint32(entry[0:4]),
			checksum: binary.BigEndian.Uint32(entry[4:8]),
			data:     ttf[offset : offset+length],
		}
		packed, err := compress(t.data)
		if err != nil {
			return nil, fmt.Errorf("compressing table %q: %w", entry[0:4], err)
		}
		if len(packed) < len(t.data) {
			t.packed = packed
		} else {
			t.packed = t.data
		}
		tables[i] = t
		sfntSize += align4(length)
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].tag < tables[j].tag })

	offset := uint32(woffHeaderSize + numTables*woffEntrySize)
	dir := make([]byte, 0, numTables*woffEntrySize)
	var body bytes.Buffer
	for _, t := range tables {
		dir = binary.BigEndian.AppendUint32(dir, t.tag)
		dir = binary.BigEndian.AppendUint32(dir, offset)
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(t.packed)))
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(t.data)))
		dir = binary.BigEndian.AppendUint32(dir, t.checksum)

		body.Write(t.packed)
		pad := align4(uint32(len(t.packed))) - uint32(len(t.packed))
		body.Write(make([]byte, pad))
		offset += uint32(len(t.packed)) + pad
	}

	header := make([]byte, 0, woffHeaderSize)
	header = binary.BigEndian.AppendUint32(header, woffSignature)
	header = binary.BigEndian.AppendUint32(header, flavor)
	header = binary.BigEndian.AppendUint32(header, offset)
	header = binary.BigEndian.AppendUint16(header, uint16(numTables))
	header = binary.BigEndian.AppendUint16(header, 0)
	header = binary.BigEndian.AppendUint32(header, sfntSize)
	header = binary.BigEndian.AppendUint16(header, 1) // majorVersion
	header = binary.BigEndian.AppendUint16(header, 0)
	// no metadata or private block
	header = append(header, make([]byte, 20)...)

	out := make([]byte, 0, offset)
	out = append(out, header...)
	out = append(out, dir...)
	out = append(out, body.Bytes()...)
	return out, nil
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}
