package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDeliverer_Deliver(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(5*time.Second, "feedbridge-test/1.0")
	act := map[string]string{"type": "Create"}

	err := d.Deliver(context.Background(), act, srv.URL+"/users/alice")
	require.NoError(t, err)

	assert.Equal(t, "/users/alice/inbox", gotPath)
	assert.Equal(t, "application/activity+json", gotContentType)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "Create", decoded["type"])
}

func TestHTTPDeliverer_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(time.Second, "feedbridge-test/1.0")
	err := d.Deliver(context.Background(), map[string]string{}, srv.URL+"/users/alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestHTTPDeliverer_Unreachable(t *testing.T) {
	d := NewHTTPDeliverer(100*time.Millisecond, "feedbridge-test/1.0")
	err := d.Deliver(context.Background(), map[string]string{}, "http://127.0.0.1:1/users/alice")
	assert.Error(t, err)
}

func TestInboxURL(t *testing.T) {
	tbl := []struct {
		in   string
		want string
	}{
		{"https://social.example.com/users/alice", "https://social.example.com/users/alice/inbox"},
		{"https://social.example.com/users/alice/", "https://social.example.com/users/alice/inbox"},
		{"https://social.example.com/users/alice/inbox", "https://social.example.com/users/alice/inbox"},
	}

	for _, tt := range tbl {
		assert.Equal(t, tt.want, InboxURL(tt.in))
	}
}
