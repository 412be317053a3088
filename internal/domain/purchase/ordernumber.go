package purchase

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

// OrderNumberPrefix distinguishes order numbers from primary keys.
const OrderNumberPrefix = "ORDER-"

const (
	orderTimeModulus   = 1_000_000_000_000 // 12 digits of microseconds
	orderRandomModulus = 100_000_000       // 8 random digits
)

// OrderNumberGenerator produces human-readable order numbers without a central sequence.
// Uniqueness is probabilistic; the store's unique constraint is the hard guarantee.
type OrderNumberGenerator struct {
	now    func() time.Time
	random io.Reader
}

// NewOrderNumberGenerator returns a generator backed by the wall clock and crypto/rand.
func NewOrderNumberGenerator() *OrderNumberGenerator {
	return &OrderNumberGenerator{now: time.Now, random: rand.Reader}
}

// Next returns ORDER-<12 digit timestamp>-<8 digit random>.
func (g *OrderNumberGenerator) Next() string {
	ts := g.now().UnixMicro() % orderTimeModulus
	return fmt.Sprintf("%s%012d-%08d", OrderNumberPrefix, ts, g.randomSuffix())
}

func (g *OrderNumberGenerator) randomSuffix() int64 {
	n, err := rand.Int(g.random, big.NewInt(orderRandomModulus))
	if err != nil {
		return time.Now().UnixNano() % orderRandomModulus
	}
	return n.Int64()
}
