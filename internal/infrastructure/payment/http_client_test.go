package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCompletedPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/payments/status", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("bidder_id"))
		assert.Equal(t, "42", r.URL.Query().Get("auction_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paid": true}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	paid, err := client.HasCompletedPayment(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestHasCompletedPayment_Unpaid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paid": false}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	paid, err := client.HasCompletedPayment(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestHasCompletedPayment_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	_, err := client.HasCompletedPayment(context.Background(), 7, 42)
	assert.Error(t, err)
}
