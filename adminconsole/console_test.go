package adminconsole

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/namespace"
	"github.com/sutra-engine/sutra-storage/server"
)

func testConsole(t *testing.T) *Console {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr := namespace.New(ctx, namespace.Config{
		BasePath:          t.TempDir(),
		ReconcileInterval: time.Millisecond,
		MaxBatchSize:      1000,
		VectorDimension:   4,
	}, nil, nil)
	return New(server.New(mgr, nil, nil), nil)
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestNewConsoleAssignsUniqueSessionIDs(t *testing.T) {
	a := testConsole(t)
	b := testConsole(t)
	assert.NotEqual(t, a.sessionID, b.sessionID)
}

func TestDispatchRememberProducesConceptID(t *testing.T) {
	c := testConsole(t)
	out := captureStdout(t, func() {
		c.dispatch(context.Background(), "remember the sky is blue")
	})
	assert.Contains(t, out, "LearnConceptV2Ok")
	assert.Contains(t, out, "concept_id")
}

func TestDispatchUnknownVerbReportsError(t *testing.T) {
	c := testConsole(t)
	out := captureStdout(t, func() {
		c.dispatch(context.Background(), "selfdestruct")
	})
	assert.Contains(t, out, "error:")
}

func TestDispatchListReportsListRecentResponse(t *testing.T) {
	c := testConsole(t)
	c.dispatch(context.Background(), "remember something worth listing")
	out := captureStdout(t, func() {
		c.dispatch(context.Background(), "list 5")
	})
	assert.Contains(t, out, "ListRecentOk")
}
