package gitcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// InstallPack decodes a raw incoming packfile (the "PACK" header, its
// object count, and that many var-length-headed, zlib-compressed,
// possibly-deltified entries) and writes every resulting object into the
// repository as a loose object, resolving ref-deltas against either an
// object already decoded earlier in this same pack or one already present
// in the store. It returns the hashes of every object the pack contained,
// in encounter order, matching receive-pack's need to know what just
// arrived before updating refs.
func (r *Repository) InstallPack(data []byte) ([]Hash, error) {
	rs := bytes.NewReader(data)

	var header [12]byte
	if _, err := io.ReadFull(rs, header[:]); err != nil {
		return nil, NewError(KindInvalid, "reading pack header", err)
	}
	if string(header[:4]) != "PACK" {
		return nil, NewError(KindInvalid, "not a pack file (missing PACK magic)", nil)
	}
	numObjects := binary.BigEndian.Uint32(header[8:12])

	decoded := make(map[Hash][]byte, numObjects)
	decodedType := make(map[Hash]byte, numObjects)
	order := make([]Hash, 0, numObjects)

	resolve := func(id Hash) ([]byte, byte, error) {
		if payload, ok := decoded[id]; ok {
			return payload, decodedType[id], nil
		}
		payload, objType, err := r.ReadRaw(id)
		if err != nil {
			return nil, 0, err
		}
		return payload, byte(objType), nil
	}

	for i := uint32(0); i < numObjects; i++ {
		payload, objType, err := readPackObject(rs, resolve)
		if err != nil {
			return nil, fmt.Errorf("InstallPack: decoding object %d of %d: %w", i+1, numObjects, err)
		}

		id, err := r.WriteRaw(ObjectType(objType), payload)
		if err != nil {
			return nil, fmt.Errorf("InstallPack: storing object %d of %d: %w", i+1, numObjects, err)
		}

		decoded[id] = payload
		decodedType[id] = objType
		order = append(order, id)
	}

	return order, nil
}
