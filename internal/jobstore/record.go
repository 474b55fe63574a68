package jobstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
)

// Record framing: jsonBody | crc32c(jsonBody). The checksum catches torn or
// corrupted records on read; a bad frame is reported, never silently dropped.

// ErrCorruptRecord indicates a record failed its checksum or framing.
var ErrCorruptRecord = errors.New("jobstore: corrupt record")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord marshals v to JSON and appends a CRC32C trailer.
func EncodeRecord(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+4)
	out = append(out, body...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(body, castagnoli))
	return append(out, cb[:]...), nil
}

// DecodeRecord verifies the trailer and unmarshals the JSON body into v.
func DecodeRecord(b []byte, v any) error {
	if len(b) < 4 {
		return ErrCorruptRecord
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return ErrCorruptRecord
	}
	if err := json.Unmarshal(body, v); err != nil {
		return ErrCorruptRecord
	}
	return nil
}
