package seating

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowOf builds a first-row snapshot where the listed positions are taken.
func rowOf(taken ...int) []RowSeat {
	blocked := make(map[int]bool, len(taken))
	for _, p := range taken {
		blocked[p] = true
	}
	row := make([]RowSeat, DefaultSeatsPerRow)
	for pos := 1; pos <= DefaultSeatsPerRow; pos++ {
		row[pos-1] = RowSeat{Position: pos, ID: SeatID(pos), Available: !blocked[pos]}
	}
	return row
}

func TestBestBlockSkipsSoldNeighbour(t *testing.T) {
	assert.Equal(t, []SeatID{5, 6, 7}, BestBlock(rowOf(4), 5, 3))
}

func TestBestBlockCentersAnchor(t *testing.T) {
	// right-extend {5..8} and centered expansion {3..6} both sit one off
	// center; the sliding window {4..7} puts the anchor exactly on it.
	assert.Equal(t, []SeatID{4, 5, 6, 7}, BestBlock(rowOf(), 5, 4))
	assert.Equal(t, []SeatID{4, 5, 6}, BestBlock(rowOf(), 5, 3))
}

func TestBestBlockTieGoesToRightExtend(t *testing.T) {
	// for k=2 the anchor belongs at index 0, so {4,5} beats {3,4}.
	assert.Equal(t, []SeatID{4, 5}, BestBlock(rowOf(), 4, 2))
}

func TestBestBlockSingleSeat(t *testing.T) {
	assert.Equal(t, []SeatID{6}, BestBlock(rowOf(), 6, 1))
	assert.Empty(t, BestBlock(rowOf(6), 6, 1))
}

func TestBestBlockAnchorTaken(t *testing.T) {
	assert.Empty(t, BestBlock(rowOf(5), 5, 3))
}

func TestBestBlockNoPartialResult(t *testing.T) {
	// only positions 5 and 6 are free around the anchor
	assert.Empty(t, BestBlock(rowOf(4, 7), 5, 3))
	assert.Equal(t, []SeatID{5, 6}, BestBlock(rowOf(4, 7), 5, 2))
}

func TestBestBlockRowEdge(t *testing.T) {
	assert.Equal(t, []SeatID{8, 9, 10}, BestBlock(rowOf(), 10, 3))
	assert.Equal(t, []SeatID{1, 2, 3}, BestBlock(rowOf(), 1, 3))
}

func TestSelectValidation(t *testing.T) {
	inv, err := NewInventory(DefaultLayout(), nil)
	require.NoError(t, err)
	sel := NewBlockSelector(inv)

	_, err = sel.Select(5, 0)
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = sel.Select(5, DefaultSeatsPerRow+1)
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = sel.Select(101, 2)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSelectStaysInAnchorRow(t *testing.T) {
	inv, err := NewInventory(DefaultLayout(), nil)
	require.NoError(t, err)
	sel := NewBlockSelector(inv)

	got, err := sel.Select(20, 4) // last seat of row 2
	require.NoError(t, err)
	assert.Equal(t, []SeatID{17, 18, 19, 20}, got)

	got, err = sel.Select(21, 4) // first seat of row 3
	require.NoError(t, err)
	assert.Equal(t, []SeatID{21, 22, 23, 24}, got)
}

func TestSelectHonoursHoldsAndExpiry(t *testing.T) {
	clk := newFakeClock()
	inv := newTestInventory(t, clk)
	sel := NewBlockSelector(inv)
	require.NoError(t, inv.Reserve([]SeatID{34}, "key-a", clk.Now().Add(time.Minute)))

	got, err := sel.Select(35, 3)
	require.NoError(t, err)
	assert.Equal(t, []SeatID{35, 36, 37}, got)

	got, err = sel.Select(34, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	clk.Advance(2 * time.Minute)
	got, err = sel.Select(35, 3)
	require.NoError(t, err)
	assert.Equal(t, []SeatID{34, 35, 36}, got)
}

// TestBestBlockProperties checks every anchor and party size over random
// rows against a brute-force search of all windows containing the anchor.
func TestBestBlockProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 300; trial++ {
		var taken []int
		for pos := 1; pos <= DefaultSeatsPerRow; pos++ {
			if rng.Intn(3) == 0 {
				taken = append(taken, pos)
			}
		}
		row := rowOf(taken...)
		for p := 1; p <= DefaultSeatsPerRow; p++ {
			for k := 1; k <= DefaultSeatsPerRow; k++ {
				got := BestBlock(row, p, k)
				bestScore := -1
				for start := max(1, p-k+1); start <= min(DefaultSeatsPerRow-k+1, p); start++ {
					free := true
					for i := start; i < start+k; i++ {
						free = free && row[i-1].Available
					}
					if !free {
						continue
					}
					score := p - start - (k-1)/2
					if score < 0 {
						score = -score
					}
					if bestScore < 0 || score < bestScore {
						bestScore = score
					}
				}
				if bestScore < 0 {
					assert.Empty(t, got, "row %v p=%d k=%d", taken, p, k)
					continue
				}
				require.Len(t, got, k, "row %v p=%d k=%d", taken, p, k)
				assert.Contains(t, got, SeatID(p))
				for i, id := range got {
					assert.True(t, row[id-1].Available)
					if i > 0 {
						assert.Equal(t, got[i-1]+1, id)
					}
				}
				idx := p - int(got[0])
				score := idx - (k-1)/2
				if score < 0 {
					score = -score
				}
				assert.Equal(t, bestScore, score, "row %v p=%d k=%d", taken, p, k)
			}
		}
	}
}
