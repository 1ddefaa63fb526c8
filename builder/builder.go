// Package builder implements the index-build path (§4.F, §6's "parallel
// builder... communicates only by producing partition files"): reading
// a dataset stream, quantizing it through a binning.Specification,
// folding the resulting per-bin flat membership into an index-encoding
// scheme's stored regions, and assembling an ioformat.PartitionInput
// ready for either backing store's Build/BuildIndex. Grounded on
// indexenc.Scheme's EncodedRegionDefinitions contract and on the
// teacher's chunked-read style (tiledb.go's chunkedStructSlices),
// generalized here to dataset.Stream.NextN instead of a tiledb query
// buffer.
package builder

import (
	"errors"
	"fmt"
	"math"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/dataset"
	"github.com/pique-io/pique/indexenc"
	"github.com/pique-io/pique/ioformat"
	"github.com/pique-io/pique/region"
)

// readChunkSize is the number of elements pulled from a dataset.Stream
// per NextN call while scanning to assign bin ids.
const readChunkSize = 1 << 16

// ErrEmptyDataset is a Configuration-kind error: a partition was asked
// to build over a subset with no elements.
var ErrEmptyDataset = errors.New("builder: empty dataset subset")

// Config names the encodings one partition build uses. Binning must
// already be fitted against the value domain (its Observe/constructor
// step, if any, run before BuildPartition is called) so Quantize is
// ready to call immediately.
type Config struct {
	IndexEncoding  indexenc.Type
	RegionEncoding region.Type
	Binning        binning.Specification
}

// BuildPartition reads every element of stream, quantizes it via
// cfg.Binning, and folds the flat per-bin membership into cfg's
// IndexEncoding scheme's stored regions, encoded as cfg.RegionEncoding.
// domain names the partition's RID range and id in the enclosing index;
// its length must equal the number of elements stream yields.
func BuildPartition(stream dataset.Stream, cfg Config, domain ioformat.PartitionDomain) (ioformat.PartitionInput, error) {
	binIDs, binKeys, err := scanBins(stream, cfg.Binning)
	if err != nil {
		return ioformat.PartitionInput{}, err
	}
	domainSize := uint64(len(binIDs))
	if domainSize == 0 {
		return ioformat.PartitionInput{}, ErrEmptyDataset
	}

	scheme, err := indexenc.New(cfg.IndexEncoding)
	if err != nil {
		return ioformat.PartitionInput{}, fmt.Errorf("builder: %w", err)
	}
	nbins := cfg.Binning.NumBins()
	defs := scheme.EncodedRegionDefinitions(nbins)

	regions := make([]region.Region, len(defs))
	for i, memberBins := range defs {
		r, err := encodeUnionOfBins(binIDs, domainSize, memberBins, cfg.RegionEncoding)
		if err != nil {
			return ioformat.PartitionInput{}, fmt.Errorf("builder: region %d: %w", i, err)
		}
		regions[i] = r
	}

	specBlob, err := binning.Serialize(cfg.Binning)
	if err != nil {
		return ioformat.PartitionInput{}, fmt.Errorf("builder: serialize binning spec: %w", err)
	}

	return ioformat.PartitionInput{
		Domain:          domain,
		DomainSize:      domainSize,
		NBins:           nbins,
		BinKeys:         binKeys,
		BinningSpecBlob: specBlob,
		IndexEncoding:   uint8(cfg.IndexEncoding),
		RegionEncoding:  cfg.RegionEncoding,
		Regions:         regions,
	}, nil
}

// scanBins reads stream to completion, returning each element's
// quantized bin id in read order plus, for each bin, the smallest value
// observed mapping to it (NaN for a bin no element reached). BinKeys is
// this codebase's name for that representative-value array (§6); since
// binning.Specification exposes no generic boundary accessor across its
// variants, the builder derives it empirically from the scanned data
// rather than from the quantizer's internals.
func scanBins(stream dataset.Stream, spec binning.Specification) (binIDs []int, binKeys []float64, err error) {
	nbins := spec.NumBins()
	binKeys = make([]float64, nbins)
	for i := range binKeys {
		binKeys[i] = math.NaN()
	}

	for {
		chunk := stream.NextN(readChunkSize)
		if len(chunk) == 0 {
			break
		}
		for _, v := range chunk {
			bin := spec.Quantize(v)
			binIDs = append(binIDs, bin)
			if bin >= 0 && bin < nbins {
				if math.IsNaN(binKeys[bin]) || v < binKeys[bin] {
					binKeys[bin] = v
				}
			}
		}
	}
	return binIDs, binKeys, nil
}

// encodeUnionOfBins builds the region that is the union of every
// element whose bin id appears in memberBins, encoded as encoding.
// Elements are pushed to the encoder in ascending RID order (InsertBits
// requires a monotone position), a single pass per stored region.
func encodeUnionOfBins(binIDs []int, domainSize uint64, memberBins []int, encoding region.Type) (region.Region, error) {
	member := make(map[int]bool, len(memberBins))
	for _, b := range memberBins {
		member[b] = true
	}

	enc, err := region.NewEncoder(encoding, domainSize)
	if err != nil {
		return nil, err
	}
	for i, bin := range binIDs {
		if member[bin] {
			enc.InsertBits(uint64(i), 1)
		}
	}
	enc.Finalize()
	return enc.IntoEncoding(), nil
}
