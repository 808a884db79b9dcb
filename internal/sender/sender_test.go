package sender

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/rocemon/internal/models"
)

func newTestSink(retries int) *HTTPSink {
	s := New(retries, time.Second, nil)
	s.retryDelay = time.Millisecond
	return s
}

func TestSave_PutsGzippedRecord(t *testing.T) {
	var got models.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.NewDecoder(gz).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	record := &models.Record{SessionID: "abc", Interface: "eth0", DataPoints: []models.Sample{}}
	require.NoError(t, newTestSink(0).Save(context.Background(), record, srv.URL+"/sessions/abc"))

	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, "eth0", got.Interface)
}

func TestSave_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestSink(3).Save(context.Background(), &models.Record{}, srv.URL)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSave_GivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestSink(2).Save(context.Background(), &models.Record{}, srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSave_ClientErrorIsFinal(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusTooManyRequests} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(code)
		}))

		err := newTestSink(3).Save(context.Background(), &models.Record{}, srv.URL)
		srv.Close()

		require.Error(t, err, "status %d", code)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", code)
	}
}
