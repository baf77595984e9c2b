package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/wire"
	"github.com/imattau/fed-AI-sub001/pkg/runner"
)

func TestFake_InferEchoesInput(t *testing.T) {
	f := runner.NewFake()
	resp, err := f.Infer(context.Background(), wire.InferenceRequest{RequestID: "r1", Input: "hello"})
	require.NoError(t, err)
	require.Equal(t, "echo:hello", resp.Output)
}

func TestHTTPRunner_InferRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/infer", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"requestId":"r1","nodeId":"n1","output":"echo:hi"}`))
	}))
	defer srv.Close()

	c := runner.NewHTTPRunner(srv.URL)
	resp, err := c.Infer(context.Background(), wire.InferenceRequest{RequestID: "r1", Input: "hi"})
	require.NoError(t, err)
	require.Equal(t, "echo:hi", resp.Output)
}

func TestHTTPRunner_5xxIsRunnerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := runner.NewHTTPRunner(srv.URL)
	_, err := c.Infer(context.Background(), wire.InferenceRequest{RequestID: "r1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "runner-unavailable")
}

func TestHTTPRunner_4xxIsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad input"))
	}))
	defer srv.Close()

	c := runner.NewHTTPRunner(srv.URL)
	_, err := c.Infer(context.Background(), wire.InferenceRequest{RequestID: "r1"})
	var clientErr *runner.ClientError
	require.ErrorAs(t, err, &clientErr)
	require.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
}
