package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/mocks"
)

func TestHTTPServer_Address(t *testing.T) {
	s := NewHTTPServer(http.NotFoundHandler(), ":0", time.Second, time.Second)
	assert.Equal(t, ":0", s.Address())
}

func TestHTTPServer_StartServesAndStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sec := mocks.NewSecurityLayer(t)
	sec.On("Listen", "tcp", ":0").Return(ln, nil).Once()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := NewHTTPServer(handler, ":0", time.Second, time.Second)

	done := make(chan error, 1)
	go func() { done <- srv.Start(sec) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/ping")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, srv.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHTTPServer_StartListenError(t *testing.T) {
	sec := mocks.NewSecurityLayer(t)
	sec.On("Listen", "tcp", ":0").Return(nil, errors.New("address in use")).Once()

	srv := NewHTTPServer(http.NotFoundHandler(), ":0", time.Second, time.Second)

	err := srv.Start(sec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
