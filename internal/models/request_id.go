package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const requestIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RequestIDPattern validates the YYYYMMDD-HHMMSS-XXXXXX identifier format.
var RequestIDPattern = regexp.MustCompile(`^\d{8}-\d{6}-[A-Z0-9]{6}$`)

// GenerateRequestID produces a new submission identifier. The timestamp part
// uses UTC so identifiers sort chronologically regardless of server locale.
func GenerateRequestID() string {
	now := time.Now().UTC()
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(requestIDCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unrecoverable; fall back to
			// a time-derived index so submission still proceeds.
			suffix[i] = requestIDCharset[time.Now().UnixNano()%int64(len(requestIDCharset))]
			continue
		}
		suffix[i] = requestIDCharset[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", now.Format("20060102"), now.Format("150405"), string(suffix))
}
