// Package integrity derives the short identifier printed on every consent document.
package integrity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Identifier hashes the signer identity together with the moment and
// origin of the signature. Two submissions of the same person at different
// times yield different identifiers. It traces a document, it proves nothing
// about tampering.
func Identifier(nome, cognome, codiceFiscale string, at time.Time, ip string) string {
	d := xxhash.New()
	for _, part := range []string{nome, cognome, codiceFiscale, strconv.FormatInt(at.UnixMilli(), 10), ip} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016X", d.Sum64())
}
