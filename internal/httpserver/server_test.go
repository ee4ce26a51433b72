package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(8000, http.NotFoundHandler(), Options{})

	assert.Equal(t, ":8000", srv.Addr())
	assert.Equal(t, 5*time.Second, srv.inner.ReadHeaderTimeout)
	assert.Equal(t, 30*time.Second, srv.inner.WriteTimeout)
	assert.Equal(t, 60*time.Second, srv.inner.IdleTimeout)
}

func TestNewHonoursOptions(t *testing.T) {
	srv := New(9000, http.NotFoundHandler(), Options{WriteTimeout: time.Minute})
	assert.Equal(t, time.Minute, srv.inner.WriteTimeout)
}
