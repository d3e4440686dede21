package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/riftlink/relay/internal/logging"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.PlayersOnline.Set(3)
	m.PacketsReceived.WithLabelValues("Ping").Inc()
	m.VoiceDropped.WithLabelValues("rate_limited").Add(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"relay_players_online",
		"relay_packets_received_total",
		"relay_voice_dropped_total",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewMetricsWithRegistry(reg)

	srv := NewServer("127.0.0.1:0", func() HealthStatus {
		return HealthStatus{Players: 7, Actors: 12, UptimeSecs: 30}
	}, logging.NopLogger())

	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	var st HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode health status: %v", err)
	}
	if st.Status != "ok" || st.Players != 7 || st.Actors != 12 {
		t.Errorf("unexpected health status: %+v", st)
	}

	mresp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer mresp.Body.Close()

	body, _ := io.ReadAll(mresp.Body)
	if !strings.Contains(string(body), "# ") {
		t.Error("expected prometheus exposition output")
	}
}
