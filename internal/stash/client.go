package stash

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/stashapp/stash/pkg/plugin/common"
)

// graphqlRequest is the body go-graphql-client posts
type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// pruneVariables drops null input fields from GraphQL request variables.
// Stash treats an explicit null in an update input as "clear this field".
func pruneVariables(req *http.Request) {
	if req.Method != http.MethodPost || req.Body == nil {
		return
	}
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		return
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	restore := func(b []byte) {
		req.Body = io.NopCloser(bytes.NewReader(b))
		req.ContentLength = int64(len(b))
	}
	if err != nil {
		restore(body)
		return
	}

	var payload graphqlRequest
	if err := json.Unmarshal(body, &payload); err != nil || payload.Variables == nil {
		restore(body)
		return
	}

	payload.Variables = dropNulls(payload.Variables).(map[string]interface{})

	pruned, err := json.Marshal(payload)
	if err != nil {
		restore(body)
		return
	}
	restore(pruned)
}

// dropNulls removes null object members at any depth; null array elements are kept
func dropNulls(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, member := range val {
			if member == nil {
				delete(val, k)
				continue
			}
			val[k] = dropNulls(member)
		}
		return val
	case []interface{}:
		for i := range val {
			val[i] = dropNulls(val[i])
		}
		return val
	default:
		return val
	}
}

// NewClient creates a GraphQL client for an explicit endpoint with null pruning
func NewClient(endpoint string, httpClient graphql.Doer, options ...graphql.ClientOption) *graphql.Client {
	return graphql.NewClient(endpoint, httpClient, options...).WithRequestModifier(pruneVariables)
}

// BaseURL returns the Stash server root for a server connection
func BaseURL(provider common.StashServerConnection) string {
	scheme := provider.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(provider.Host, strconv.Itoa(provider.Port))
}

// HTTPClient returns an HTTP client that carries the plugin session cookie to the Stash server
func HTTPClient(provider common.StashServerConnection) *http.Client {
	jar, _ := cookiejar.New(nil)
	if provider.SessionCookie != nil {
		if u, err := url.Parse(BaseURL(provider)); err == nil {
			jar.SetCookies(u, []*http.Cookie{provider.SessionCookie})
		}
	}
	return &http.Client{Jar: jar}
}

// Client creates a GraphQL client for the Stash server the plugin was started by
func Client(provider common.StashServerConnection) *graphql.Client {
	return NewClient(BaseURL(provider)+"/graphql", HTTPClient(provider))
}
