package services

import "sort"

// extent is a run of file bytes. A nil data slice stands for length zero
// bytes, which keeps holes and unrecoverable ranges from allocating.
type extent struct {
	start  uint64
	length uint64
	data   []byte
}

func (e extent) end() uint64 { return e.start + e.length }

// slice returns the part of e inside [from, to).
func (e extent) slice(from, to uint64) extent {
	out := extent{start: from, length: to - from}
	if e.data != nil {
		out.data = e.data[from-e.start : to-e.start]
	}
	return out
}

// fragmentMap holds the non-overlapping extents of one file, sorted by
// start. Inserting a range replaces whatever it overlaps.
type fragmentMap struct {
	extents []extent
}

// insert writes data at start, shadowing older bytes in the same range.
func (m *fragmentMap) insert(start uint64, data []byte) {
	m.put(extent{start: start, length: uint64(len(data)), data: data})
}

// insertZero writes length zero bytes at start.
func (m *fragmentMap) insertZero(start, length uint64) {
	m.put(extent{start: start, length: length})
}

func (m *fragmentMap) put(e extent) {
	if e.length == 0 {
		return
	}

	kept := make([]extent, 0, len(m.extents)+2)
	for _, old := range m.extents {
		if old.end() <= e.start || old.start >= e.end() {
			kept = append(kept, old)
			continue
		}
		if old.start < e.start {
			kept = append(kept, old.slice(old.start, e.start))
		}
		if old.end() > e.end() {
			kept = append(kept, old.slice(e.end(), old.end()))
		}
	}

	i := sort.Search(len(kept), func(i int) bool { return kept[i].start >= e.start })
	kept = append(kept, extent{})
	copy(kept[i+1:], kept[i:])
	kept[i] = e
	m.extents = kept
}

// end returns the offset just past the last extent.
func (m *fragmentMap) end() uint64 {
	if len(m.extents) == 0 {
		return 0
	}
	return m.extents[len(m.extents)-1].end()
}

// covered returns the number of bytes covered by some extent.
func (m *fragmentMap) covered() uint64 {
	var n uint64
	for _, e := range m.extents {
		n += e.length
	}
	return n
}

// assemble returns the first size bytes of the file. Bytes no extent
// covers read as zero.
func (m *fragmentMap) assemble(size uint64) []byte {
	out := make([]byte, size)
	for _, e := range m.extents {
		if e.start >= size {
			break
		}
		if e.data == nil {
			continue
		}
		to := e.end()
		if to > size {
			to = size
		}
		copy(out[e.start:to], e.data[:to-e.start])
	}
	return out
}
