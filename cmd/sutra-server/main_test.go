package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/config"
	"github.com/sutra-engine/sutra-storage/snapshot"
)

func emptySnapshot() *snapshot.GraphSnapshot {
	return snapshot.NewEmpty()
}

func TestBuildAuditSinkReturnsNilWhenNothingEnabled(t *testing.T) {
	sink := buildAuditSink(config.Default(), zap.NewNop())
	assert.Nil(t, sink)
}

func TestBuildAuditFuncReturnsNilForNilSink(t *testing.T) {
	fn := buildAuditFunc(nil)
	assert.Nil(t, fn)
}

func TestBuildPersistFuncWritesAndReadsBack(t *testing.T) {
	cfg := config.Default()
	persist := buildPersistFunc(cfg, zap.NewNop())
	require.NotNil(t, persist)

	dir := t.TempDir()
	flush := persist("tenant-a", dir)
	require.NotNil(t, flush)

	require.NoError(t, flush(emptySnapshot()))

	loaded, err := buildLoadFunc(zap.NewNop())("tenant-a", dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 0, loaded.Len())
}
