package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevelAndNamespace(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Init(Options{Output: buf, Level: "debug"}))
	defer func() {
		_ = Init(Options{Level: "info"})
	}()

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	WithNamespace("dataset").Debug("hello")
	assert.Contains(t, buf.String(), "nspace=dataset")
	assert.Contains(t, buf.String(), "hello")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Options{Level: "loud"})
	assert.Error(t, err)
}
