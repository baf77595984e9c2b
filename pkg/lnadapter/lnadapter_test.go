package lnadapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/pkg/lnadapter"
)

func TestFake_VerifyReturnsConfiguredStatus(t *testing.T) {
	f := lnadapter.NewFake(true)
	resp, err := f.Verify(context.Background(), lnadapter.VerifyRequest{RequestID: "r1"})
	require.NoError(t, err)
	require.True(t, resp.Paid)
}

func TestHTTPAdapter_VerifyRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		w.Write([]byte(`{"paid":true,"settledAtMs":123}`))
	}))
	defer srv.Close()

	c := lnadapter.NewHTTPAdapter(srv.URL)
	resp, err := c.Verify(context.Background(), lnadapter.VerifyRequest{RequestID: "r1"})
	require.NoError(t, err)
	require.True(t, resp.Paid)
	require.Equal(t, int64(123), resp.SettledAtMs)
}

func TestHTTPAdapter_ErrorStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := lnadapter.NewHTTPAdapter(srv.URL)
	_, err := c.Verify(context.Background(), lnadapter.VerifyRequest{RequestID: "r1"})
	require.Error(t, err)
}
