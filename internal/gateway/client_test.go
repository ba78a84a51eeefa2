package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() CompletionRequest {
	return CompletionRequest{
		Message:   "Hello",
		SessionID: "session-1",
		UserContext: UserContext{
			Name:       "explorer-1234",
			TrustScore: 50,
			Level:      1,
			HesitationData: &HesitationData{
				DeletionCount: 2,
				NudgeShown:    true,
			},
		},
	}
}

func TestCompleteSuccess(t *testing.T) {
	t.Parallel()

	var got CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CompletionResponse{
			Response:  "Hi there",
			SessionID: got.SessionID,
		})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL, Timeout: 5 * time.Second}, nil)
	resp, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Response)
	assert.Equal(t, "session-1", resp.SessionID)

	assert.Equal(t, "Hello", got.Message)
	assert.Equal(t, "session-1", got.SessionID)
	require.NotNil(t, got.UserContext.HesitationData)
	assert.Equal(t, 2, got.UserContext.HesitationData.DeletionCount)
}

func TestCompleteErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL}, nil)
	_, err := client.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStatus)
}

func TestCompleteMalformedBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL}, nil)
	_, err := client.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode completion response")
}

func TestCompleteEmptyResponseText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(CompletionResponse{SessionID: "session-1"})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL}, nil)
	_, err := client.Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestCompleteContextCancellation(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client tearing down the connection on cancellation.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL, Timeout: 30 * time.Second}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestUnconfiguredAlwaysFails(t *testing.T) {
	t.Parallel()
	_, err := Unconfigured{}.Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrUnconfigured)
}
