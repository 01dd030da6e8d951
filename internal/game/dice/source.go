package dice

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// FixedSource returns a predetermined sequence of values, cycling when
// exhausted. Values are the desired die faces, not Intn arguments: a
// FixedSource(18, 9) produces an 18 then a 9 from any die that can show them.
// It is safe for concurrent use.
type FixedSource struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewFixedSource creates a FixedSource yielding the given faces in order.
//
// Precondition: at least one value; all values >= 1.
func NewFixedSource(values ...int) *FixedSource {
	if len(values) == 0 {
		panic("dice: NewFixedSource requires at least one value")
	}
	cp := make([]int, len(values))
	copy(cp, values)
	return &FixedSource{values: cp}
}

// Intn returns the next fixed face minus 1, clamped to [0, n).
func (f *FixedSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	f.mu.Lock()
	v := f.values[f.next%len(f.values)]
	f.next++
	f.mu.Unlock()

	v-- // faces are 1-based; Intn results are 0-based
	if v < 0 {
		v = 0
	}
	if v >= n {
		v = n - 1
	}
	return v
}
