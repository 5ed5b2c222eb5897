package otelspan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DeriveIDs_Deterministic(t *testing.T) {
	tid1, spid1 := DeriveIDs("job-42")
	tid2, spid2 := DeriveIDs("job-42")
	assert.Equal(t, tid1, tid2)
	assert.Equal(t, spid1, spid2)
}

func Test_DeriveIDs_DifferentSeedsDiffer(t *testing.T) {
	tid1, spid1 := DeriveIDs("job-42")
	tid2, spid2 := DeriveIDs("job-43")
	assert.NotEqual(t, tid1, tid2)
	assert.NotEqual(t, spid1, spid2)
}

func Test_DeriveIDs_ValidNonZero(t *testing.T) {
	tid, spid := DeriveIDs("seed")
	assert.True(t, tid.IsValid())
	assert.True(t, spid.IsValid())
}
