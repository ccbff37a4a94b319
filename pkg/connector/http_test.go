package connector

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSendMessageWithBearerChallenge(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "my-registry", r.URL.Query().Get("service"))

		_ = json.NewEncoder(w).Encode(map[string]string{"token": "granted-token"})
	}))
	defer tokenServer.Close()

	var authHeaderSeen string

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaderSeen = r.Header.Get("Authorization")

		if authHeaderSeen == "" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s",service="my-registry",scope="repository:x:pull"`, tokenServer.URL))
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.Write([]byte(`{"tags":["latest"]}`))
	}))
	defer apiServer.Close()

	h := NewHTTP(logrus.New())

	resp, err := h.SendMessage(apiServer.URL+"/v2/x/tags/list", true)
	require.NoError(t, err)
	assert.Equal(t, `{"tags":["latest"]}`, resp.Message)
	assert.Equal(t, "Bearer granted-token", authHeaderSeen)
}

func TestHTTPClonesShareTokenCache(t *testing.T) {
	h := NewHTTP(logrus.New())
	h.tokens.put("example.com", "shared-token")

	clone := h.Clone().(*HTTP)

	got, ok := clone.tokens.get("example.com")
	require.True(t, ok)
	assert.Equal(t, "shared-token", got)
}

func TestHTTPReceivePartialResponseErrors(t *testing.T) {
	h := NewHTTP(logrus.New())

	_, err := h.ReceivePartialResponse()
	assert.Error(t, err)
}

func TestHTTPSendMessageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	h := NewHTTP(logrus.New())

	_, err := h.SendMessage(server.URL, true)
	assert.Error(t, err)
}
