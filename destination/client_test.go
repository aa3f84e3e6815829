package destination_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowenginer/meta-hub/destination"
	"github.com/flowenginer/meta-hub/internal/hmacsig"
)

func TestClient_Call(t *testing.T) {
	t.Run("success captures status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "event-1", r.Header.Get("X-MetaHub-Event-Id"))
			assert.Equal(t, "1", r.Header.Get("X-MetaHub-Attempt"))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		d := destination.Destination{
			URL:      srv.URL,
			Method:   destination.MethodPOST,
			AuthType: destination.AuthNone,
		}
		result := destination.NewClient().Call(t.Context(), d, "event-1", 1, []byte(`{"a":1}`))

		require.True(t, result.Success())
		assert.Equal(t, `{"ok":true}`, result.ResponseBody)
	})

	t.Run("non-2xx is not success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		d := destination.Destination{URL: srv.URL, Method: destination.MethodPOST}
		result := destination.NewClient().Call(t.Context(), d, "event-1", 1, []byte("{}"))

		assert.False(t, result.Success())
		require.NotNil(t, result.StatusCode)
		assert.Equal(t, 500, *result.StatusCode)
	})

	t.Run("hmac auth signs the body", func(t *testing.T) {
		secret := "s3cr3t"
		body := []byte(`{"a":1}`)
		var gotSig string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSig = r.Header.Get("X-Hub-Signature-256")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d := destination.Destination{
			URL:      srv.URL,
			Method:   destination.MethodPOST,
			AuthType: destination.AuthHMAC,
			AuthConfig: destination.AuthConfig{Secret: secret},
		}
		destination.NewClient().Call(t.Context(), d, "event-1", 1, body)

		expected := "sha256=" + hmacsig.HexDigest([]byte(secret), body)
		assert.Equal(t, expected, gotSig)
	})

	t.Run("bearer auth sets Authorization header", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d := destination.Destination{
			URL:        srv.URL,
			Method:     destination.MethodPOST,
			AuthType:   destination.AuthBearer,
			AuthConfig: destination.AuthConfig{Token: "tok123"},
		}
		destination.NewClient().Call(t.Context(), d, "event-1", 1, []byte("{}"))
		assert.Equal(t, "Bearer tok123", gotAuth)
	})

	t.Run("response body is truncated to 2000 bytes", func(t *testing.T) {
		big := make([]byte, 5000)
		for i := range big {
			big[i] = 'x'
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(big)
		}))
		defer srv.Close()

		d := destination.Destination{URL: srv.URL, Method: destination.MethodPOST}
		result := destination.NewClient().Call(t.Context(), d, "event-1", 1, []byte("{}"))
		assert.Len(t, result.ResponseBody, 2000)
	})

	t.Run("network failure is captured, not returned as an error", func(t *testing.T) {
		d := destination.Destination{URL: "http://127.0.0.1:1", Method: destination.MethodPOST, TimeoutMs: 1000}
		result := destination.NewClient().Call(t.Context(), d, "event-1", 1, []byte("{}"))
		assert.False(t, result.Success())
		assert.NotEmpty(t, result.ErrorMessage)
	})

	t.Run("hung destination reports Timeout after Xms with no status code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(1200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		// TimeoutMs sits at the 1000ms floor EffectiveTimeoutMs allows; the handler sleeps past it.
		d := destination.Destination{URL: srv.URL, Method: destination.MethodPOST, TimeoutMs: 1000}
		result := destination.NewClient().Call(t.Context(), d, "event-1", 1, []byte("{}"))

		assert.False(t, result.Success())
		assert.Nil(t, result.StatusCode)
		assert.Equal(t, "Timeout after 1000ms", result.ErrorMessage)
	})
}
