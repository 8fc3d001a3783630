// Package refnum generates the human-readable reference numbers printed on
// visits, patient cards, invoices and receipts.
package refnum

import (
	"crypto/rand"
	"strconv"
	"time"
)

const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Suffix returns n random characters drawn from an alphabet without the
// easily confused 0/O and 1/I.
func Suffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// Daily returns PREFIX-YYYYMMDD-XXXXXX.
func Daily(prefix string, t time.Time) string {
	return prefix + "-" + t.UTC().Format("20060102") + "-" + Suffix(6)
}

// Stamped returns PREFIX-<unix millis>-XXXX, used where numbers are issued in
// bursts and must sort by issue time.
func Stamped(prefix string, t time.Time) string {
	return prefix + "-" + strconv.FormatInt(t.UnixMilli(), 10) + "-" + Suffix(4)
}
