package ioformat

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pique-io/pique/region"
)

// PartitionInput is everything the builder needs to serialize one
// partition. Regions must already be in final, compressed form; Build
// calls region.Region.Serialize on each.
type PartitionInput struct {
	Domain          PartitionDomain
	DomainSize      uint64
	NBins           int
	BinKeys         []float64
	BinningSpecBlob []byte
	IndexEncoding   uint8
	RegionEncoding  region.Type
	Regions         []region.Region
}

func serializePartitionBlock(p PartitionInput) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = appendU64(buf, p.DomainSize)
	buf = appendU64(buf, uint64(p.NBins))

	keys := make([]byte, 0, 8*len(p.BinKeys))
	for _, k := range p.BinKeys {
		keys = appendFloat64(keys, k)
	}
	buf = appendBlob(buf, keys)
	buf = appendBlob(buf, p.BinningSpecBlob)

	buf = appendU8(buf, p.IndexEncoding)
	buf = appendU8(buf, uint8(p.RegionEncoding))
	buf = appendU64(buf, uint64(len(p.Regions)))

	offsets := make([]uint64, len(p.Regions)+1)
	var payload []byte
	for i, r := range p.Regions {
		data, err := r.Serialize()
		if err != nil {
			return nil, fmt.Errorf("ioformat: serialize region %d: %w", i, err)
		}
		payload = append(payload, data...)
		offsets[i+1] = offsets[i] + uint64(len(data))
	}
	for _, off := range offsets {
		buf = appendU64(buf, off)
	}
	buf = appendBlob(buf, payload)
	return buf, nil
}

// Build serializes a complete index file (§6 "Index file format"):
// header (partition count, per-partition domain + file offset) followed
// by each partition's block.
func Build(partitions []PartitionInput) ([]byte, error) {
	blocks := make([][]byte, len(partitions))
	for i, p := range partitions {
		blk, err := serializePartitionBlock(p)
		if err != nil {
			return nil, err
		}
		blocks[i] = blk
	}

	headerSize := uint64(8 + 32*len(partitions))
	offset := headerSize
	fileOffsets := make([]uint64, len(partitions))
	for i, blk := range blocks {
		fileOffsets[i] = offset
		offset += uint64(len(blk))
	}

	out := make([]byte, 0, offset)
	out = appendU64(out, uint64(len(partitions)))
	for i, p := range partitions {
		out = appendU64(out, p.Domain.PartitionID)
		out = appendU64(out, p.Domain.BeginRID)
		out = appendU64(out, p.Domain.EndRID)
		out = appendU64(out, fileOffsets[i])
	}
	for _, blk := range blocks {
		out = append(out, blk...)
	}
	return out, nil
}

// FileIndexIO is the concrete little-endian file-backed IndexIO (§4.F),
// grounded on the teacher's Stream-based GsfFile reading style.
type FileIndexIO struct {
	stream      Stream
	domains     []PartitionDomain
	fileOffsets map[uint64]int64
}

// OpenIndex reads an index file's header from stream and returns a
// FileIndexIO ready to serve GetPartition calls. The stream must remain
// open and seekable for the FileIndexIO's lifetime.
func OpenIndex(stream Stream) (*FileIndexIO, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	count, err := readU64(stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read partition count: %w", err)
	}
	domains := make([]PartitionDomain, count)
	offsets := make(map[uint64]int64, count)
	for i := uint64(0); i < count; i++ {
		pid, err := readU64(stream)
		if err != nil {
			return nil, fmt.Errorf("ioformat: read partition id: %w", err)
		}
		begin, err := readU64(stream)
		if err != nil {
			return nil, fmt.Errorf("ioformat: read begin rid: %w", err)
		}
		end, err := readU64(stream)
		if err != nil {
			return nil, fmt.Errorf("ioformat: read end rid: %w", err)
		}
		fileOffset, err := readU64(stream)
		if err != nil {
			return nil, fmt.Errorf("ioformat: read partition file offset: %w", err)
		}
		domains[i] = PartitionDomain{PartitionID: pid, BeginRID: begin, EndRID: end}
		offsets[pid] = int64(fileOffset)
	}
	return &FileIndexIO{stream: stream, domains: domains, fileOffsets: offsets}, nil
}

func (f *FileIndexIO) GlobalMetadata() (int, []PartitionDomain) {
	return len(f.domains), f.domains
}

func (f *FileIndexIO) Close() error {
	if c, ok := f.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (f *FileIndexIO) GetPartition(partitionID uint64) (IndexPartitionIO, error) {
	offset, ok := f.fileOffsets[partitionID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPartition, partitionID)
	}
	if _, err := f.stream.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	domainSize, err := readU64(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read domain size: %w", err)
	}
	nbinsU, err := readU64(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read nbins: %w", err)
	}
	nbins := int(nbinsU)

	keysBlob, err := readBlob(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read bin key array: %w", err)
	}
	binKeys := make([]float64, len(keysBlob)/8)
	for i := range binKeys {
		binKeys[i], err = decodeFloat64At(keysBlob, i*8)
		if err != nil {
			return nil, err
		}
	}

	binningSpecBlob, err := readBlob(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read binning spec blob: %w", err)
	}

	indexEncoding, err := readU8(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read index encoding id: %w", err)
	}
	regionEncodingByte, err := readU8(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read region encoding id: %w", err)
	}
	regionEncoding := region.Type(regionEncodingByte)

	nregionsU, err := readU64(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read nregions: %w", err)
	}
	nregions := int(nregionsU)

	regionOffsets := make([]uint64, nregions+1)
	for i := range regionOffsets {
		regionOffsets[i], err = readU64(f.stream)
		if err != nil {
			return nil, fmt.Errorf("ioformat: read region offset %d: %w", i, err)
		}
	}

	payloadLen, err := readU64(f.stream)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read region payload length: %w", err)
	}
	payloadBase, err := Tell(f.stream)
	if err != nil {
		return nil, err
	}
	if _, err := f.stream.Seek(int64(payloadLen), io.SeekCurrent); err != nil {
		return nil, err
	}

	meta := PartitionMetadata{
		DomainSize:     domainSize,
		NBins:          nbins,
		BinKeys:        binKeys,
		BinningSpec:    binningSpecBlob,
		IndexEncoding:  indexEncoding,
		RegionEncoding: regionEncoding,
		NRegions:       nregions,
	}
	return &FilePartitionIO{
		stream:        f.stream,
		meta:          meta,
		payloadBase:   payloadBase,
		regionOffsets: regionOffsets,
	}, nil
}

func decodeFloat64At(blob []byte, pos int) (float64, error) {
	if pos+8 > len(blob) {
		return 0, ErrTruncated
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(blob[pos : pos+8])), nil
}

// FilePartitionIO is the concrete IndexPartitionIO backing FileIndexIO.
// Region reads are synchronous seek-then-read against the shared
// stream, matching the single-threaded cooperative model (§5): there is
// never more than one read in flight.
type FilePartitionIO struct {
	stream        Stream
	meta          PartitionMetadata
	payloadBase   int64
	regionOffsets []uint64
}

func (p *FilePartitionIO) PartitionMetadata() PartitionMetadata { return p.meta }

func (p *FilePartitionIO) BinKeys() []float64 { return p.meta.BinKeys }

func (p *FilePartitionIO) ReadRegion(id region.RID) (region.Region, error) {
	i := int(id)
	if i < 0 || i >= p.meta.NRegions {
		return nil, fmt.Errorf("ioformat: region id %d out of range [0,%d)", id, p.meta.NRegions)
	}
	start, end := p.regionOffsets[i], p.regionOffsets[i+1]
	if _, err := p.stream.Seek(p.payloadBase+int64(start), io.SeekStart); err != nil {
		return nil, err
	}
	data, err := readFull(p.stream, int(end-start))
	if err != nil {
		return nil, fmt.Errorf("ioformat: read region %d payload: %w", id, err)
	}
	r, _, err := region.Deserialize(p.meta.RegionEncoding, p.meta.DomainSize, data)
	return r, err
}

func (p *FilePartitionIO) RegionsSizeInBytes(begin, end region.RID) (int, error) {
	if int(begin) < 0 || int(end) > p.meta.NRegions || begin > end {
		return 0, fmt.Errorf("ioformat: region range [%d,%d) out of bounds", begin, end)
	}
	return int(p.regionOffsets[end] - p.regionOffsets[begin]), nil
}
