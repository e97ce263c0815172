package dcerr

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = orig

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestDumpChainWalksWrappedLayers(t *testing.T) {
	wrapped := fmt.Errorf("load %s: %w", "w1", ErrNotFound)

	out := captureStdout(t, func() { DumpChain(wrapped) })

	assert.Contains(t, out, "[0]")
	assert.Contains(t, out, "load w1")
	assert.Contains(t, out, "[1]")
	assert.Contains(t, out, ErrNotFound.Error())
}

func TestDumpChainHandlesNilWithoutPanicking(t *testing.T) {
	out := captureStdout(t, func() { DumpChain(nil) })
	assert.Empty(t, out)
}
