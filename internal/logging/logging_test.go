package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/logging"
)

func TestNew_JSONComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New("debug", "json", &buf)
	require.NoError(t, err)

	logging.Component(l, "store").Debug("hello")
	assert.Contains(t, buf.String(), `"component":"store"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNew_BadLevel(t *testing.T) {
	_, err := logging.New("loud", "text", nil)
	assert.Error(t, err)
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, logging.OrDiscard(nil))
}
