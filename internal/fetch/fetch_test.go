package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<title>ok</title>"))
	}))
	defer srv.Close()

	c := New(srv.Client(), "TestBot/1.0")
	resp, err := c.Get(context.Background(), srv.URL, time.Second, 0)
	require.NoError(t, err)
	assert.Equal(t, "TestBot/1.0", gotUA)
	assert.True(t, resp.OK())
	assert.Equal(t, "<title>ok</title>", string(resp.Body))
}

func TestGetNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	resp, err := New(srv.Client(), "").Get(context.Background(), srv.URL, time.Second, 0)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "404 Not Found", resp.StatusText())
}

func TestGetTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(srv.Client(), "").Get(context.Background(), srv.URL, 50*time.Millisecond, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := New(srv.Client(), "").Get(context.Background(), srv.URL, time.Second, 32)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRedirectLoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := New(srv.Client(), "").Get(context.Background(), srv.URL+"/a", time.Second, 0)
	assert.ErrorIs(t, err, ErrRedirectLoop)
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"https://example.com/a", false},
		{"http://example.com", false},
		{"/relative/path", true},
		{"ftp://example.com/file", true},
		{"https://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		_, err := ParseURL(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidURL, tt.raw)
		} else {
			assert.NoError(t, err, tt.raw)
		}
	}
}

func TestHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	resp, err := New(srv.Client(), "").Head(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "image/png", resp.ContentType)
}
