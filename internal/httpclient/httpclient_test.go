package httpclient

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLogsWithoutQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	client := New(Options{Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)})

	resp, err := client.Get(srv.URL + "/v1beta/models?key=secret")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Contains(t, buf.String(), `"path":"/v1beta/models"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.NotContains(t, buf.String(), "secret")
}

func TestClientDefaults(t *testing.T) {
	client := New(Options{})
	assert.Equal(t, 180e9, float64(client.Timeout))
	_, ok := client.Transport.(*loggingTransport)
	assert.True(t, ok)
}
