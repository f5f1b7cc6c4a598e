package handlers

import (
	"fmt"
	"io"

	"github.com/imamik/stagehand/internal/util/keygen"
)

// DefaultKeyBits is the key size used unless --bits is given.
const DefaultKeyBits = keygen.DefaultBits

// Keygen writes a new key pair to path and path.pub.
func Keygen(w io.Writer, path string, bits int) error {
	if bits < 2048 {
		return fmt.Errorf("refusing to generate a %d bit key, use at least 2048", bits)
	}
	pair, err := keygen.Write(path, bits)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Private key written to %s\n", path)
	_, _ = fmt.Fprintf(w, "Public key written to %s.pub\n", path)
	_, _ = fmt.Fprintf(w, "%s", pair.PublicKey)
	return nil
}
