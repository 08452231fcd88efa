package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticHealth struct {
	healthy bool
}

func (s staticHealth) Healthy() bool { return s.healthy }

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	srv := httptest.NewServer(m.Server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New(Config{Address: ":0", ServiceName: "test-service"})

	m.ConnectionEstablished()
	m.ConnectionReestablished()
	m.MessageReceived("my.routing.key")
	m.MessageAcked("my.routing.key")
	m.MessageNacked("my.routing.key", true)
	m.MessageDropped("unknown.key")
	m.PublishSucceeded("my.routing.key")
	m.PublishFailed("my.routing.key")
	m.HandlerStarted("my.routing.key", "onEdit")
	m.HandlerFinished("my.routing.key", "onEdit", 25*time.Millisecond, nil)
	m.QueueBacklog("prefix_onEdit", 3)

	body := scrape(t, m)

	for _, metric := range []string{
		`amqp_connects_total{service="test-service"} 1`,
		`amqp_reconnects_total{service="test-service"} 1`,
		`amqp_messages_received_total{routing_key="my.routing.key",service="test-service"} 1`,
		`amqp_messages_acked_total{routing_key="my.routing.key",service="test-service"} 1`,
		`amqp_messages_nacked_total{requeued="true",routing_key="my.routing.key",service="test-service"} 1`,
		`amqp_messages_dropped_total{routing_key="unknown.key",service="test-service"} 1`,
		`amqp_publishes_total{routing_key="my.routing.key",service="test-service",status="success"} 1`,
		`amqp_publishes_total{routing_key="my.routing.key",service="test-service",status="failure"} 1`,
		`amqp_backlog{queue="prefix_onEdit",service="test-service"} 3`,
	} {
		require.Contains(t, body, metric)
	}

	// In-progress gauge must be back to zero after HandlerFinished.
	require.Contains(t, body,
		`amqp_inprogress{function="onEdit",routing_key="my.routing.key",service="test-service"} 0`)
}

func TestHandlerFailureCounted(t *testing.T) {
	m := New(Config{Address: ":0", ServiceName: "test-service"})

	m.HandlerStarted("my.routing.key", "onEdit")
	m.HandlerFinished("my.routing.key", "onEdit", time.Millisecond, io.ErrUnexpectedEOF)

	body := scrape(t, m)
	require.Contains(t, body,
		`amqp_exceptions_callback_total{function="onEdit",routing_key="my.routing.key",service="test-service"} 1`)
}

func TestHealthzEndpoint(t *testing.T) {
	m := New(Config{Address: ":0", ServiceName: "test-service"})

	srv := httptest.NewServer(m.Server.Handler)
	defer srv.Close()

	// Without a reporter nothing can vouch for the connection.
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	m.SetHealthReporter(staticHealth{healthy: true})
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), `"healthy":true`))

	m.SetHealthReporter(staticHealth{healthy: false})
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
