package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artpar/fusion/domain/source"
)

func TestFetchHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "metric", r.URL.Query().Get("units"))
		require.Equal(t, "fusion", r.Header.Get("X-Client"))
		io.WriteString(w, "  {\"x\": 1}\n")
	}))
	defer srv.Close()

	c := NewClient(Config{})
	body, err := c.Fetch(context.Background(), source.Source{
		Code:    "a",
		URL:     srv.URL,
		Params:  map[string]string{"units": "metric"},
		Headers: map[string]string{"X-Client": "fusion"},
	})
	require.NoError(t, err)
	// Surrounding whitespace is trimmed before validation.
	require.Equal(t, `{"x": 1}`, string(body))
}

func TestFetchAuthVariants(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.URL.Query().Get("api_key")
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	c := NewClient(Config{})
	ctx := context.Background()

	_, err := c.Fetch(ctx, source.Source{
		Code: "basic", URL: srv.URL,
		Auth: source.Auth{Kind: source.AuthBasic, Username: "u", Password: "p"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(gotAuth, "Basic "))

	_, err = c.Fetch(ctx, source.Source{
		Code: "bearer", URL: srv.URL,
		Auth: source.Auth{Kind: source.AuthBearer, Token: "tok"},
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", gotAuth)

	_, err = c.Fetch(ctx, source.Source{
		Code: "param", URL: srv.URL,
		Auth: source.Auth{Kind: source.AuthParam, ParamKey: "api_key", ParamValue: "k1"},
	})
	require.NoError(t, err)
	require.Equal(t, "k1", gotKey)
}

func TestFetchBodyVariants(t *testing.T) {
	type captured struct {
		contentType string
		body        string
		form        map[string]string
	}
	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = captured{contentType: r.Header.Get("Content-Type")}
		if strings.HasPrefix(got.contentType, "multipart/form-data") {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			got.form = map[string]string{}
			for k := range r.MultipartForm.Value {
				got.form[k] = r.MultipartForm.Value[k][0]
			}
		} else {
			b, _ := io.ReadAll(r.Body)
			got.body = string(b)
		}
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	c := NewClient(Config{})
	ctx := context.Background()

	_, err := c.Fetch(ctx, source.Source{
		Code: "t", URL: srv.URL,
		Body: source.Body{Kind: source.BodyText, Text: "hello"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", got.body)

	_, err = c.Fetch(ctx, source.Source{
		Code: "j", URL: srv.URL,
		Body: source.Body{Kind: source.BodyJSON, JSON: json.RawMessage(`{"q":"go"}`)},
	})
	require.NoError(t, err)
	require.Equal(t, "application/json", got.contentType)
	require.JSONEq(t, `{"q":"go"}`, got.body)

	_, err = c.Fetch(ctx, source.Source{
		Code: "f", URL: srv.URL,
		Body: source.Body{Kind: source.BodyForm, Fields: map[string]string{"region": "eu"}},
	})
	require.NoError(t, err)
	require.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	require.Equal(t, "region=eu", got.body)

	_, err = c.Fetch(ctx, source.Source{
		Code: "m", URL: srv.URL,
		Body: source.Body{Kind: source.BodyMulti, Fields: map[string]string{"part": "v"}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"part": "v"}, got.form)
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{})
	_, err := c.Fetch(context.Background(), source.Source{Code: "down", URL: srv.URL})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestFetchInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))
	defer srv.Close()

	c := NewClient(Config{})
	_, err := c.Fetch(context.Background(), source.Source{Code: "html", URL: srv.URL})
	require.ErrorContains(t, err, "invalid JSON")
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	c := NewClient(Config{})
	_, err := c.Fetch(context.Background(), source.Source{
		Code: "slow", URL: srv.URL, Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	require.True(t, IsTimeout(err), "err = %v should be a timeout", err)
}

func TestFetchMalformedURL(t *testing.T) {
	c := NewClient(Config{})
	for _, u := range []string{"", "not a url", "ftp://host/x", "/relative"} {
		_, err := c.Fetch(context.Background(), source.Source{Code: "bad", URL: u})
		require.Error(t, err, "url %q", u)
		require.False(t, IsTimeout(err))
	}
}

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(context.DeadlineExceeded))
	require.False(t, IsTimeout(errors.New("plain")))
	require.False(t, IsTimeout(&StatusError{Code: 500}))
}
