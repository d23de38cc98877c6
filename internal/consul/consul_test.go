package consul

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	mu           sync.Mutex
	registered   consulapi.AgentServiceRegistration
	deregistered string
}

func (f *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.URL.Path == "/v1/agent/service/register":
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &f.registered)
	case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		f.deregistered = strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/")
	case r.URL.Path == "/v1/health/service/payments":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Node":{"Address":"10.0.0.9"},"Service":{"Service":"payments","Address":"","Port":7070}}]`))
		return
	case r.URL.Path == "/v1/health/service/empty":
		_, _ = w.Write([]byte(`[]`))
		return
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newFake(t *testing.T) (*fakeAgent, *consulapi.Client) {
	t.Helper()
	fa := &fakeAgent{}
	srv := httptest.NewServer(fa)
	t.Cleanup(srv.Close)
	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return fa, client
}

func TestRegisterAndDeregister(t *testing.T) {
	fa, client := newFake(t)

	id, err := RegisterService(client, "fulfillment", "10.0.0.5", 8080)
	require.NoError(t, err)
	assert.Equal(t, "fulfillment-10.0.0.5-8080", id)
	assert.Equal(t, "fulfillment", fa.registered.Name)
	require.NotNil(t, fa.registered.Check)
	assert.Equal(t, "http://10.0.0.5:8080/ping", fa.registered.Check.HTTP)

	require.NoError(t, Deregister(client, id))
	assert.Equal(t, id, fa.deregistered)
}

func TestGetServiceAddress(t *testing.T) {
	_, client := newFake(t)

	addr, port, err := GetServiceAddress(client, "payments")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", addr)
	assert.Equal(t, 7070, port)

	_, _, err = GetServiceAddress(client, "empty")
	assert.Error(t, err)
}
