package multiway

// loserTree is a tournament tree laid out such that nodes N and N+1 have
// parent N/2. Leaf i lives at virtual position k+i and internal nodes occupy
// positions 1..k-1. Internal nodes store the run index that lost the game
// played there; position 0 stores the overall winner.
type loserTree[T any] struct {
	c      *cursors[T]
	losers []int
}

func newLoserTree[T any](c *cursors[T]) *loserTree[T] {
	t := &loserTree[T]{
		c:      c,
		losers: make([]int, len(c.runs)),
	}
	t.losers[0] = t.playGame(1)
	return t
}

// playGame returns the winner below pos, storing losers on the way up.
func (t *loserTree[T]) playGame(pos int) int {
	k := len(t.losers)
	if pos >= k {
		return pos - k
	}

	left := t.playGame(pos * 2)
	right := t.playGame(pos*2 + 1)
	if t.c.beats(right, left) {
		t.losers[pos] = left
		return right
	}
	t.losers[pos] = right
	return left
}

// replayGames re-plays every game on the path from run i's leaf to the root
// after run i advanced.
func (t *loserTree[T]) replayGames(i int) {
	winner := i
	for n := parent(i + len(t.losers)); n != 0; n = parent(n) {
		if t.c.beats(t.losers[n], winner) {
			t.losers[n], winner = winner, t.losers[n]
		}
	}
	t.losers[0] = winner
}

func parent(i int) int { return i >> 1 }

func mergeLoserTree[T any](dst []T, c *cursors[T]) int {
	t := newLoserTree(c)

	n := 0
	for n < len(dst) {
		w := t.losers[0]
		if c.exhausted(w) {
			break
		}
		dst[n] = c.take(w)
		n++
		t.replayGames(w)
	}
	return n
}
