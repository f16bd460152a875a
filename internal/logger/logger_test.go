package logger

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewSelectsFormatter(t *testing.T) {
	local := New("debug", "local")
	assert.IsType(t, &logrus.TextFormatter{}, local.Logger.Formatter)
	assert.Equal(t, logrus.DebugLevel, local.Logger.GetLevel())

	prod := New("warn", "production")
	assert.IsType(t, &logrus.JSONFormatter{}, prod.Logger.Formatter)
	assert.Equal(t, logrus.WarnLevel, prod.Logger.GetLevel())

	assert.Equal(t, logrus.InfoLevel, New("bogus", "").Logger.GetLevel())
}

func TestWithRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/analyze", nil)
	r.Header.Set("X-Request-ID", "req-1")

	entry := Discard().WithRequest(r)
	assert.Equal(t, "req-1", entry.Data["req_id"])
	assert.Equal(t, "/analyze", entry.Data["path"])

	fresh := Discard().WithRequest(httptest.NewRequest("GET", "/healthz", nil))
	assert.NotEmpty(t, fresh.Data["req_id"])
}

func TestWithError(t *testing.T) {
	l := Discard()
	assert.Equal(t, l.Entry, l.WithError(nil))
	assert.Equal(t, "boom", l.WithError(errors.New("boom")).Data["error"])
	assert.Equal(t, "pipeline", l.Component("pipeline").Data["component"])
}
