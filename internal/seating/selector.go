package seating

// RowSource is what the block selector needs from an inventory.
type RowSource interface {
	Layout() Layout
	Row(row int) []RowSeat
}

// BlockSelector picks the k adjacent seats a user pointing at an anchor
// seat most plausibly wants.  Several candidate windows are generated and
// the one that puts the anchor closest to its middle wins, so hovering a
// seat highlights a block roughly symmetric around it.
type BlockSelector struct {
	src RowSource
}

// NewBlockSelector returns a selector reading availability from src.
func NewBlockSelector(src RowSource) *BlockSelector {
	return &BlockSelector{src: src}
}

// Select returns the chosen seat ids left to right, or an empty slice when
// no full block of k available seats in the anchor's row contains the
// anchor.  A partial block is never returned.  Errors are limited to a
// party size outside [1, seatsPerRow] and an anchor outside the grid.
func (b *BlockSelector) Select(anchor SeatID, k int) ([]SeatID, error) {
	layout := b.src.Layout()
	if k < 1 || k > layout.SeatsPerRow {
		return nil, NewError(ErrValidation, "select block", "party size out of range", nil)
	}
	if anchor < 1 || int(anchor) > layout.Capacity() {
		return nil, NewError(ErrNotFound, "select block", "unknown anchor", []SeatID{anchor})
	}
	row := b.src.Row(anchor.Row(layout.SeatsPerRow))
	return BestBlock(row, anchor.Position(layout.SeatsPerRow), k), nil
}

// BestBlock runs the candidate search over one row snapshot.  p is the
// 1-based anchor position.  Candidates are discovered in this order:
//
//  1. right-extend from p
//  2. left-extend from p
//  3. centered expansion, one seat left then one right per round
//  4. every k-window inside the row that contains p
//
// Only windows of exactly k available seats survive.  The winner minimizes
// |index(anchor) - (k-1)/2|; ties go to the earlier candidate.
func BestBlock(row []RowSeat, p, k int) []SeatID {
	n := len(row)
	if k < 1 || k > n || p < 1 || p > n || !row[p-1].Available {
		return []SeatID{}
	}
	avail := func(pos int) bool { return row[pos-1].Available }

	var starts []int

	count := 0
	for i := p; i <= n && count < k; i++ {
		if !avail(i) {
			break
		}
		count++
	}
	if count == k {
		starts = append(starts, p)
	}

	count = 0
	for i := p; i >= 1 && count < k; i-- {
		if !avail(i) {
			break
		}
		count++
	}
	if count == k {
		starts = append(starts, p-k+1)
	}

	lo, hi, got := p, p, 1
	for got < k {
		grew := false
		if lo > 1 && avail(lo-1) {
			lo--
			got++
			grew = true
		}
		if got < k && hi < n && avail(hi+1) {
			hi++
			got++
			grew = true
		}
		if !grew {
			break
		}
	}
	if got == k {
		starts = append(starts, lo)
	}

	for start := max(1, p-k+1); start <= min(n-k+1, p); start++ {
		ok := true
		for i := start; i < start+k; i++ {
			if !avail(i) {
				ok = false
				break
			}
		}
		if ok {
			starts = append(starts, start)
		}
	}

	if len(starts) == 0 {
		return []SeatID{}
	}
	center := (k - 1) / 2
	best, bestScore := starts[0], n+1
	for _, start := range starts {
		score := p - start - center
		if score < 0 {
			score = -score
		}
		if score < bestScore {
			best, bestScore = start, score
		}
	}
	out := make([]SeatID, 0, k)
	for i := best; i < best+k; i++ {
		out = append(out, row[i-1].ID)
	}
	return out
}
