package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apony/quoteintake/internal/core"
)

func TestCloudFunctionTransportSend(t *testing.T) {
	var got functionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"messageId":"msg-123"}`))
	}))
	defer srv.Close()

	transport := NewCloudFunctionTransport(CloudFunctionConfig{
		URL:      srv.URL,
		Currency: "CAD",
		Brand:    Brand{Name: "TMS", PrimaryColor: "#111"},
	}, nil)
	require.True(t, transport.Configured())
	require.Equal(t, core.NotifyCloudFunction, transport.Method())

	n := Notification{
		Quote:      sampleQuote(),
		Recipients: []string{"ops@x.io", "sales@x.io"},
		Link:       "http://admin/quote-requests/1",
	}
	receipt, err := transport.Send(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, "msg-123", receipt.MessageID)

	require.Equal(t, "en", got.Lang)
	require.Equal(t, "TMS", got.Brand.Name)
	require.Equal(t, "QR-20250304-0001", got.Order.OrderNo)
	require.Equal(t, "Ana (Acme Freight)", got.Order.CustomerName)
	require.Equal(t, "2025-03-10", got.Order.PickupDate)
	require.Equal(t, "ops@x.io,sales@x.io", got.Order.To)
	require.Equal(t, "http://admin/quote-requests/1", got.Order.Link)
	require.Equal(t, []functionItem{
		{Name: "cargo", Qty: 4, Weight: "120.5kg"},
		{Name: "pallets", Qty: 2},
	}, got.Order.Items)
	require.Contains(t, got.Order.Notes, "Services: LTL, COLD")
}

func TestCloudFunctionTransportFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"ok":false,"error":"quota"}`, wantErr: "status 500: quota"},
		{name: "ok false", status: http.StatusOK, body: `{"ok":false,"error":"bad recipient"}`, wantErr: "bad recipient"},
		{name: "not json", status: http.StatusOK, body: `accepted`, wantErr: "decode"},
		{name: "missing ok", status: http.StatusOK, body: `{"messageId":"x"}`, wantErr: "ok=false"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			transport := NewCloudFunctionTransport(CloudFunctionConfig{URL: srv.URL}, nil)
			_, err := transport.Send(context.Background(), Notification{Quote: sampleQuote(), Recipients: []string{"ops@x.io"}})
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestCloudFunctionTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	transport := NewCloudFunctionTransport(CloudFunctionConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := transport.Send(context.Background(), Notification{Quote: sampleQuote(), Recipients: []string{"ops@x.io"}})
	require.Error(t, err)
}

func TestCloudFunctionTransportUnconfigured(t *testing.T) {
	transport := NewCloudFunctionTransport(CloudFunctionConfig{}, nil)
	require.False(t, transport.Configured())

	_, err := transport.Send(context.Background(), Notification{Quote: sampleQuote()})
	require.Error(t, err)
}
