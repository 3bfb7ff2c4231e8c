package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecret(t *testing.T) {
	assert.Equal(t, "***", Secret("otp", "482913").Value.String())
	assert.Equal(t, "+155***", Secret("phone", "+15551234567").Value.String())
	assert.Equal(t, "?", Secret("phone", "").Value.String())
}

func TestErr(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "error", Err(nil).Key)
}

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	New("prod", &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	New("dev", &buf).Debug("shown", Module("test"))
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"mod":"test"`)

	buf.Reset()
	New("local", &buf).Info("plain", Secret("otp", "123456"))
	assert.Contains(t, buf.String(), "msg=plain")
	assert.Contains(t, buf.String(), "otp=***")
}
