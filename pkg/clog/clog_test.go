package clog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestTransferEntriesGoToTheirOwnOutput(t *testing.T) {
	global := &bufferCloser{}
	l := NewContextLogger(global)

	transferOut := &bufferCloser{}
	l.AddLoggingContext("abc", transferOut)
	assert.True(t, l.HasLoggingContext("abc"))

	l.ForTransfer("abc").WithField("table", "Orders").Infof("wrote chunk")
	l.ForTransfer("other").Infof("polled")

	assert.Contains(t, transferOut.String(), "wrote chunk")
	assert.Contains(t, transferOut.String(), "transfer=abc table=Orders")
	assert.NotContains(t, global.String(), "wrote chunk")
	assert.Contains(t, global.String(), "transfer=other")

	l.RemoveLoggingContext("abc")
	assert.True(t, transferOut.closed)
	assert.False(t, l.HasLoggingContext("abc"))

	l.ForTransfer("abc").Infof("after removal")
	assert.Contains(t, global.String(), "after removal")
}

func TestSetLevel(t *testing.T) {
	global := &bufferCloser{}
	l := NewContextLogger(global)

	require.NoError(t, l.SetLevelFromString(GlobalLoggerCtx, "warn"))
	l.Global().Infof("hidden")
	l.Global().Warnf("shown")

	assert.False(t, strings.Contains(global.String(), "hidden"))
	assert.Contains(t, global.String(), "shown")

	assert.Error(t, l.SetLevel("unknown-transfer", log.DebugLevel))
	assert.Error(t, l.SetLevelFromString(GlobalLoggerCtx, "loud"))
}
