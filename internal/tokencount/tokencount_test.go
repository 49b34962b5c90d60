package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load("testdata/does-not-exist.json")
	require.Error(t, err)
}

func TestCount_NilCounterFails(t *testing.T) {
	var c *Counter
	_, err := c.Count(nil)
	require.Error(t, err)
}

func TestClose_NilCounterIsNoOp(t *testing.T) {
	var c *Counter
	assert.NoError(t, c.Close())
}
