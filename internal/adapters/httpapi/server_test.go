package httpapi

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServerStartReportsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	server := NewServer(taken.Addr().String(), http.NotFoundHandler(), zap.NewNop())
	err = server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), taken.Addr().String())
}

func TestServerStartAndStop(t *testing.T) {
	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := free.Addr().String()
	require.NoError(t, free.Close())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	server := NewServer(addr, handler, zap.NewNop())
	require.NoError(t, server.Start())

	// Listening as soon as Start returns
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, server.Stop())
	_, err = http.Get("http://" + addr + "/")
	assert.Error(t, err)
}
