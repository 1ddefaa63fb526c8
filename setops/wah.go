package setops

import "github.com/pique-io/pique/region"

// wahImpl implements SetOperations for WAH by decompressing to bitmap
// blocks, delegating to the word-parallel bitmap algorithm, and
// recompressing the result. The true FastBit algorithm merges fill runs
// without materializing the expanded bitmap; PIQUE-Go's WAH already uses
// its own simplified word format (region.WAHRegion), so this mirrors
// that simplification rather than reimplementing run-level merging.
type wahImpl struct{}

func (wahImpl) Accepts(types ...region.Type) bool {
	for _, t := range types {
		if t != region.WAH {
			return false
		}
	}
	return true
}

func wahToBitmap(r *region.WAHRegion) *region.BitmapRegion {
	return region.NewBitmapRegion(r.DomainSize(), region.WAHToBitmapBlocks(r.Words(), r.DomainSize()))
}

func bitmapToWAHRegion(r *region.BitmapRegion) *region.WAHRegion {
	enc := region.NewWAHEncoder(r.DomainSize())
	for _, rid := range r.ToRIDs(nil, 0) {
		enc.InsertBits(rid, 1)
	}
	enc.Finalize()
	return enc.IntoEncoding().(*region.WAHRegion)
}

func (wahImpl) Unary(r region.Region, op UnaryOp) (region.Region, error) {
	bm, err := bitmapImpl{}.Unary(wahToBitmap(r.(*region.WAHRegion)), op)
	if err != nil {
		return nil, err
	}
	return bitmapToWAHRegion(bm.(*region.BitmapRegion)), nil
}

func (wahImpl) Binary(l, r region.Region, op Op) (region.Region, error) {
	a := wahToBitmap(l.(*region.WAHRegion))
	b := wahToBitmap(r.(*region.WAHRegion))
	bm, err := bitmapImpl{}.Binary(a, b, op)
	if err != nil {
		return nil, err
	}
	return bitmapToWAHRegion(bm.(*region.BitmapRegion)), nil
}

func (m wahImpl) Nary(regions []region.Region, op Op) (region.Region, error) {
	bitmaps := make([]region.Region, len(regions))
	for i, r := range regions {
		bitmaps[i] = wahToBitmap(r.(*region.WAHRegion))
	}
	bm, err := bitmapImpl{}.Nary(bitmaps, op)
	if err != nil {
		return nil, err
	}
	return bitmapToWAHRegion(bm.(*region.BitmapRegion)), nil
}
