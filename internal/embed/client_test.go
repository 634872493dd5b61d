package embed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestClient_EmbedImages(t *testing.T) {
	var gotBody embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		resp := embedResponse{Vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	vectors, err := c.EmbedImages(context.Background(), [][]byte{[]byte("png-a"), []byte("png-b")})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])

	// Images travel base64-encoded, in order.
	require.Len(t, gotBody.Images, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-a")), gotBody.Images[0])
}

func TestClient_EmbedImages_Empty(t *testing.T) {
	c, err := NewClient("http://localhost:1")
	require.NoError(t, err)

	vectors, err := c.EmbedImages(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestClient_EmbedImages_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"vectors": [[0.1]]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.EmbedImages(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	assert.ErrorIs(t, err, ErrVectorCountMismatch)
}

func TestClient_EmbedImages_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"vectors": [[0.1]]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithMaxRetries(3), WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)

	vectors, err := c.EmbedImages(context.Background(), [][]byte{[]byte("a")})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, calls)
}

func TestClient_EmbedImages_RetriesExhausted(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithMaxRetries(2), WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = c.EmbedImages(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, calls)
}

func TestClient_EmbedImages_ClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithMaxRetries(3), WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = c.EmbedImages(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, 1, calls)
}
