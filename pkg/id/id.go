// Package id generates time-sortable trade identifiers.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewTradeID returns a ULID stamped with the given time. IDs generated within
// the same millisecond stay lexicographically increasing.
func NewTradeID(at time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at.UTC()), mono)
	if err != nil {
		// only possible if entropy overflows within one millisecond
		panic(err)
	}
	return id.String()
}
