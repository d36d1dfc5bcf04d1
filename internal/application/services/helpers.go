package services

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// lockStaleAfter bounds how long a crashed request may hold an idempotency
// lock before a retry is allowed to take it over.
const lockStaleAfter = 5 * time.Minute

func ComputeHash(v interface{}) string {
	data := fmt.Sprintf("%+v", v)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

func staleLockCutoff(now time.Time) time.Time {
	return now.Add(-lockStaleAfter)
}
