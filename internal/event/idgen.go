package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

var orderSeq uint64

// processNonce distinguishes client_order_ids across process restarts;
// it is not used for crash-recovery dedup (DESIGN.md Open Question 4).
var processNonce = randHex(4)

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "00000000"[:n*2]
	}
	return hex.EncodeToString(b)
}

// NewClientOrderID returns a process-unique idempotency key: a
// process-start nonce plus a monotonically increasing counter.
func NewClientOrderID() string {
	n := atomic.AddUint64(&orderSeq, 1)
	return fmt.Sprintf("co_%s_%d", processNonce, n)
}

// NewDryRunOrderID returns a synthetic order id for the executor's
// dry-run short-circuit: "dry_run_" followed by 8 random hex characters.
func NewDryRunOrderID() string {
	return "dry_run_" + randHex(4)
}
