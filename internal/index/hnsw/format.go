package hnsw

import "time"

// IndexFileMagic is an 8-byte snapshot magic string. The snapshot writer
// in persistence.go does not use it: it starts a snapshot with
// HNSWMagicNumber in a 20-byte header (magic, version, timestamp, CRC32)
// and stores the level generator's seed and draw count in the config
// section.
const IndexFileMagic = "HNSW1\x00\x00\x00"

// FormatVersion is the only version this package writes or reads.
const FormatVersion = uint32(1)

// IndexFileHeader is a header layout that persistence.go neither writes
// nor reads. Encoded with encoding/binary it takes 116 bytes, not
// indexFileHeaderSize.
type IndexFileHeader struct {
	Magic        [8]byte
	Version      uint32
	NodeCount    uint32
	Dimension    uint32
	MaxLevel     uint32
	EntryPoint   int64 // -1 if the index is empty
	RNGState     uint64
	ConfigSize   uint32
	NodesSize    uint32
	LinksSize    uint32
	QuantizeSize uint32
	ChecksumCRC  uint32
	Reserved     [56]byte
}

const indexFileHeaderSize = 128

// PersistenceMetadata summarizes a persisted snapshot without requiring a
// full load.
type PersistenceMetadata struct {
	Version       uint32
	NodeCount     int
	Dimension     int
	MaxLevel      int
	CreatedAt     time.Time
	ChecksumCRC32 uint32
	FileSize      int64
}
