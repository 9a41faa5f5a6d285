package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPrometheusService(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lottery",
		Name:      "test_total",
		Help:      "Test counter",
	})
	reg.MustRegister(c)
	c.Add(3)

	cfg := config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0"}}
	s := NewPrometheusService(cfg, reg, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	t.Cleanup(s.ShutDown)

	addrs := s.Addresses()
	require.Equal(t, 1, len(addrs))

	resp, err := http.Get("http://" + addrs[0] + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "lottery_test_total 3")

	// Second start is a no-op.
	require.NoError(t, s.Start())
	require.Equal(t, addrs, s.Addresses())

	s.ShutDown()
	require.Equal(t, 0, len(s.Addresses()))
	_, err = http.Get("http://" + addrs[0] + "/metrics")
	require.Error(t, err)
}

func TestServiceDisabled(t *testing.T) {
	s := NewPrometheusService(config.BasicService{Addresses: []string{"127.0.0.1:0"}}, prometheus.NewRegistry(), nil)
	require.NoError(t, s.Start())
	require.Equal(t, 0, len(s.Addresses()))
	s.ShutDown()
}

func TestServiceBadAddress(t *testing.T) {
	cfg := config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0", "bad address"}}
	s := NewPrometheusService(cfg, prometheus.NewRegistry(), zaptest.NewLogger(t))
	require.Error(t, s.Start())
	require.Equal(t, 0, len(s.Addresses()))
}
