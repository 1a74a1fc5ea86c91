// Binary encoding for persisted documents.
//
// Format v1 (values in the documents bucket; the bucket key is Document.Key):
//
//	version:     byte (1)
//	per field (Name, Path, Content, Fingerprint):
//	  len:       uvarint
//	  bytes:     [len]byte
package bbolt

import (
	"encoding/binary"
	"fmt"

	"github.com/corey/lucid/internal/ports"
)

const docFormatV1 byte = 1

// encodeDocument encodes everything but the key. A single buffer is
// pre-allocated to avoid repeated growth.
func encodeDocument(d ports.Document) []byte {
	fields := [...]string{d.Name, d.Path, d.Content, d.Fingerprint}

	size := 1
	for _, f := range fields {
		size += binary.MaxVarintLen64 + len(f)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, docFormatV1)
	for _, f := range fields {
		buf = binary.AppendUvarint(buf, uint64(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

// decodeDocument decodes a value written by encodeDocument. data may be a
// bbolt slice; every string is copied out.
func decodeDocument(key string, data []byte) (ports.Document, error) {
	if len(data) == 0 {
		return ports.Document{}, fmt.Errorf("document %q: empty value", key)
	}
	if data[0] != docFormatV1 {
		return ports.Document{}, fmt.Errorf("document %q: unknown format version %d", key, data[0])
	}
	rest := data[1:]

	var fields [4]string
	for i := range fields {
		n, w := binary.Uvarint(rest)
		if w <= 0 {
			return ports.Document{}, fmt.Errorf("document %q: bad length for field %d", key, i)
		}
		rest = rest[w:]
		if uint64(len(rest)) < n {
			return ports.Document{}, fmt.Errorf("document %q: field %d truncated (%d < %d)", key, i, len(rest), n)
		}
		fields[i] = string(rest[:n])
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return ports.Document{}, fmt.Errorf("document %q: %d trailing bytes", key, len(rest))
	}

	return ports.Document{
		Key:         key,
		Name:        fields[0],
		Path:        fields[1],
		Content:     fields[2],
		Fingerprint: fields[3],
	}, nil
}
