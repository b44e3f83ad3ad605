package oikotie_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oikotie-tools/apartment-radar/internal/oikotie"
)

const markerPage = `<!DOCTYPE html>
<html>
<head>
<meta name="api-token" content="token-abc"/>
<meta name="loaded" content="1700000000"/>
<meta name="cuid" content="cuid-xyz"/>
</head>
<body></body>
</html>`

func TestHTMLCredentialsExtractsHeaders(t *testing.T) {
	fetches := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		w.Write([]byte(markerPage))
	}))
	t.Cleanup(ts.Close)

	provider := oikotie.NewHTMLCredentials(ts.Client(), ts.URL, time.Minute)

	headers, err := provider.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-abc", headers["OTA-token"])
	require.Equal(t, "1700000000", headers["OTA-loaded"])
	require.Equal(t, "cuid-xyz", headers["OTA-cuid"])

	// Second call is served from the cache.
	_, err = provider.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fetches)

	provider.Invalidate()
	_, err = provider.Headers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestHTMLCredentialsMissingMarkers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head></head></html>`))
	}))
	t.Cleanup(ts.Close)

	provider := oikotie.NewHTMLCredentials(ts.Client(), ts.URL, time.Minute)
	_, err := provider.Headers(context.Background())
	require.Error(t, err)
}

func TestHTMLCredentialsPageError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	provider := oikotie.NewHTMLCredentials(ts.Client(), ts.URL, time.Minute)
	_, err := provider.Headers(context.Background())
	require.Error(t, err)
}
