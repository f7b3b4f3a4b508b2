package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localURL(t *testing.T, s *Server) string {
	t.Helper()
	_, port, err := net.SplitHostPort(s.Addr().String())
	require.NoError(t, err)
	return "http://127.0.0.1:" + port
}

func TestServer_StartAndShutdown(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}).Methods("GET")

	s := New(router, "0")
	assert.Nil(t, s.Addr())
	require.NoError(t, s.Start())
	require.NotNil(t, s.Addr())

	resp, err := http.Get(localURL(t, s) + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Shutdown(context.Background()))
	_, err = http.Get(localURL(t, s) + "/ping")
	assert.Error(t, err)
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	first := New(mux.NewRouter(), "0")
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	_, port, err := net.SplitHostPort(first.Addr().String())
	require.NoError(t, err)

	second := New(mux.NewRouter(), port)
	assert.Error(t, second.Start())
}
