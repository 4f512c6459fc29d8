package badger

import (
	"encoding/binary"

	"github.com/poiesic/lore/core"
)

// Key prefixes for different data types
const (
	documentPrefix = "doc:"
	chunkPrefix    = "chunk:"
	cachePrefix    = "cache:"
)

// makeDocumentKey generates a key for a document record by source ID.
func makeDocumentKey(id core.ID) []byte {
	buf := make([]byte, len(documentPrefix)+8)
	offset := copy(buf, documentPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:sourceID:position, BigEndian so a document's chunks sort by position.
func makeChunkKey(sourceID core.ID, position int) []byte {
	buf := make([]byte, len(chunkPrefix)+12)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(sourceID))
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(position))
	return buf
}

// makePartialChunkKey generates the prefix shared by every chunk of a document.
func makePartialChunkKey(sourceID core.ID) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(sourceID))
	return buf
}

// makeCacheKey namespaces a cache key.
func makeCacheKey(key string) []byte {
	return []byte(cachePrefix + key)
}
