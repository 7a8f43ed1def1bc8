package cli

import (
	"io"
	"testing"
)

// ioPipe returns a reader that blocks until the writer is closed.
func ioPipe(t *testing.T) (*io.PipeReader, *io.PipeWriter) {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() { _ = r.Close() })
	return r, w
}
