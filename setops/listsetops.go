package setops

// Generic sorted-list set-operation primitives, shared by the II and CII
// (decompressed) implementations. Grounded on
// original_source/include/pique/util/list-setops.hpp.

func sortedUnion(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func sortedIntersection(a, b []uint32) []uint32 {
	out := make([]uint32, 0, localMin(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func sortedDifference(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return out
}

func sortedSymDiff(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func listBinary(a, b []uint32, op Op) []uint32 {
	switch op {
	case UNION:
		return sortedUnion(a, b)
	case INTERSECTION:
		return sortedIntersection(a, b)
	case DIFFERENCE:
		return sortedDifference(a, b)
	default: // SYMMETRIC_DIFFERENCE
		return sortedSymDiff(a, b)
	}
}

func localMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}
