package migrate

import (
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// verifyChunk is the read size for streaming verification. Blobs run to tens
// of gigabytes and are never held in memory whole.
const verifyChunk = 64 * 1024

// DigestMismatchError reports a file whose content hashes to something other
// than its expected digest.
type DigestMismatchError struct {
	Path     string
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// VerifyBlob re-hashes the file at path with the algorithm named by expected
// and compares. A mismatch returns a DigestMismatchError carrying the actual
// digest; an unknown algorithm is an ordinary error, not corruption.
func VerifyBlob(path string, expected digest.Digest) error {
	alg := expected.Algorithm()
	if !alg.Available() {
		return fmt.Errorf("digest algorithm %q is not available", alg)
	}
	if err := expected.Validate(); err != nil {
		return fmt.Errorf("invalid expected digest %q: %w", expected, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening blob for verification: %w", err)
	}
	defer f.Close()

	digester := alg.Digester()
	if _, err := io.CopyBuffer(digester.Hash(), f, make([]byte, verifyChunk)); err != nil {
		return fmt.Errorf("reading blob for verification: %w", err)
	}

	if actual := digester.Digest(); actual != expected {
		return &DigestMismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}
