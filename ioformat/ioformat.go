// Package ioformat implements the wire-level Index/Partition file
// format (§6) and the IndexIO/IndexPartitionIO interfaces the query
// engine consumes (§4.F): global partition metadata, per-partition
// binning spec and region directory, and self-delimited region
// payloads dispatched through region.Serialize/region.Deserialize.
// Grounded on the teacher's reader.go (Stream interface) and file.go
// (Tell/Padding binary.Read usage), generalized from GSF's big-endian
// record stream to this format's little-endian, length-prefixed one.
package ioformat

import (
	"errors"

	"github.com/pique-io/pique/region"
)

// Stream is the minimal reader every backing store (an in-memory byte
// buffer, an os.File, a tiledb.VFSfh) must satisfy, mirroring the
// teacher's reader.go Stream interface.
type Stream interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

// Tell reports a Stream's current position, mirroring the teacher's
// file.go helper of the same name.
func Tell(s Stream) (int64, error) {
	return s.Seek(0, 1)
}

// ErrTruncated is an I/O error: the stream ended before a length-
// prefixed field said it would.
var ErrTruncated = errors.New("ioformat: truncated read")

// ErrUnknownPartition is a configuration error: GetPartition named a
// partition id absent from the index's global metadata.
var ErrUnknownPartition = errors.New("ioformat: unknown partition id")

// PartitionDomain names one partition's RID extent within the index's
// global domain (§4.F: "global_metadata() -> (partition_count,
// per-partition domain map)").
type PartitionDomain struct {
	PartitionID uint64
	BeginRID    uint64
	EndRID      uint64
}

// PartitionMetadata is everything a query needs to plan against a
// partition without reading any region payload (§4.F).
type PartitionMetadata struct {
	DomainSize     uint64
	NBins          int
	BinKeys        []float64
	BinningSpec    []byte // binning.Serialize blob; decoded lazily by callers that need the Specification
	IndexEncoding  uint8
	RegionEncoding region.Type
	NRegions       int
}

// IndexIO is the core's read-only view of an index file (§4.F).
type IndexIO interface {
	// GlobalMetadata returns the partition count and the sorted,
	// monotone, non-overlapping per-partition domain map.
	GlobalMetadata() (int, []PartitionDomain)
	// GetPartition opens the named partition for reading.
	GetPartition(partitionID uint64) (IndexPartitionIO, error)
	// Close releases any resources (open file handles) held by this IndexIO.
	Close() error
}

// IndexPartitionIO is the core's read-only view of a single partition
// (§4.F).
type IndexPartitionIO interface {
	PartitionMetadata() PartitionMetadata
	// ReadRegion decodes and returns the region at the given id.
	ReadRegion(id region.RID) (region.Region, error)
	// RegionsSizeInBytes sums the serialized byte size of regions
	// [begin, end) without decoding them, for cost estimation (§4.H
	// step 3).
	RegionsSizeInBytes(begin, end region.RID) (int, error)
	// BinKeys returns the partition's bin boundary/key values, mirroring
	// PartitionMetadata().BinKeys for callers that only need the keys.
	BinKeys() []float64
}
