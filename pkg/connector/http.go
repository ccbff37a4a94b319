package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

// httpDialTimeout is the default request deadline for the HTTP/TCP
// connectors.
const httpDialTimeout = 10 * time.Second

var bearerChallengeRe = regexp.MustCompile(`(\w+)="([^"]*)"`)

// HTTP is a stateless connector used for registry-style JSON APIs that
// challenge with a Bearer realm on 401 (see the Docker Registry v2 auth
// flow). Messages are full request URLs; the response body becomes the
// final ResponseMessage.
type HTTP struct {
	log       logrus.FieldLogger
	client    *http.Client
	tokens    *jwtTokenCache
	connected bool
	lastAddr  string
}

// NewHTTP creates a disconnected HTTP/JWT connector.
func NewHTTP(log logrus.FieldLogger) *HTTP {
	return &HTTP{
		log:    log.WithField("connector", "http"),
		client: &http.Client{Timeout: httpDialTimeout},
		tokens: newJWTTokenCache(),
	}
}

// Clone returns an independent HTTP connector sharing the same JWT cache,
// so dispatched requests for this stateless connector can run concurrently.
func (h *HTTP) Clone() Connector {
	return &HTTP{
		log:       h.log,
		client:    h.client,
		tokens:    h.tokens,
		connected: h.connected,
		lastAddr:  h.lastAddr,
	}
}

func (h *HTTP) Connect(address string) error {
	h.connected = true
	h.lastAddr = address

	return nil
}

func (h *HTTP) IsConnected() bool { return h.connected }

func (h *HTTP) Reconnect() error { h.connected = true; return nil }

func (h *HTTP) Disconnect() error { h.connected = false; return nil }

// SendMessage issues a GET against msg (a full URL), transparently handling
// a 401 Bearer challenge: fetch a token from the challenge's realm, cache
// it by domain, and retry once.
func (h *HTTP) SendMessage(msg string, waitFull bool) (ResponseMessage, error) {
	resp, err := h.do(msg, true)
	if err != nil {
		return ResponseMessage{}, err
	}

	return Final(resp, 0), nil
}

// ReceivePartialResponse is unused: HTTP requests in this connector are
// single-shot, never streamed.
func (h *HTTP) ReceivePartialResponse() (ResponseMessage, error) {
	return ResponseMessage{}, errors.New("http connector does not stream")
}

func (h *HTTP) do(rawURL string, allowRetry bool) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", lkerror.Wrap(lkerror.Other, "build request", err)
	}

	domain := req.URL.Host

	if token, ok := h.tokens.get(domain); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", lkerror.Wrap(lkerror.ConnectionFailed, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && allowRetry {
		challenge := resp.Header.Get("WWW-Authenticate")

		token, err := h.fetchToken(challenge)
		if err != nil {
			return "", lkerror.Wrap(lkerror.ConnectionFailed, "token fetch", err)
		}

		h.tokens.put(domain, token)

		return h.do(rawURL, false)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", lkerror.Wrap(lkerror.Other, "read body", err)
	}

	if resp.StatusCode >= 400 {
		return "", lkerror.New(lkerror.Other, fmt.Sprintf("http %d: %s", resp.StatusCode, string(body)))
	}

	return string(body), nil
}

// fetchToken parses a "Bearer realm=...,service=...,scope=..." challenge
// and fetches a token from the realm.
func (h *HTTP) fetchToken(challenge string) (string, error) {
	if !strings.HasPrefix(challenge, "Bearer ") {
		return "", fmt.Errorf("unsupported auth challenge: %s", challenge)
	}

	params := map[string]string{}
	for _, m := range bearerChallengeRe.FindAllStringSubmatch(challenge, -1) {
		params[m[1]] = m[2]
	}

	realm, ok := params["realm"]
	if !ok {
		return "", errors.New("challenge missing realm")
	}

	u, err := url.Parse(realm)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if service, ok := params["service"]; ok {
		q.Set("service", service)
	}

	if scope, ok := params["scope"]; ok {
		q.Set("scope", scope)
	}

	u.RawQuery = q.Encode()

	resp, err := h.client.Get(u.String())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	if payload.Token != "" {
		return payload.Token, nil
	}

	if payload.AccessToken != "" {
		return payload.AccessToken, nil
	}

	return "", errors.New("token endpoint returned no token")
}

// DownloadFile and UploadFile satisfy the Connector interface; the HTTP
// connector is used for registry metadata lookups, not file transfer, so
// these report NotFound/Other rather than implementing real semantics.
func (h *HTTP) DownloadFile(remotePath string) (FileMetadata, []byte, error) {
	return FileMetadata{}, nil, lkerror.New(lkerror.NotFound, "http connector does not support file download")
}

func (h *HTTP) UploadFile(metadata FileMetadata, data []byte) error {
	return lkerror.New(lkerror.Other, "http connector does not support file upload")
}
