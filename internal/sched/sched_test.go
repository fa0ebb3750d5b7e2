package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetRealtimeRejectsInvalidPriority(t *testing.T) {
	// SCHED_FIFO priorities stop at 99 everywhere it is supported.
	assert.Error(t, SetRealtime(1000))
}
