package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/bosswatch/go/clients"
	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	body  string
}

func (f *stubFetcher) FetchStatus(ctx context.Context) (*clients.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &clients.Response{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func activeFetcher() *stubFetcher {
	now := time.Now().Unix()
	return &stubFetcher{
		body: `{"status":"active","start_time":` + strconv.FormatInt(now-60, 10) +
			`,"end_time":` + strconv.FormatInt(now+600, 10) + `}`,
	}
}

func startGateway(t *testing.T, fetcher worldboss.StatusFetcher) (*worldboss.Engine, *Service, *httptest.Server) {
	t.Helper()

	cfg := worldboss.Config{
		TickInterval: 20 * time.Millisecond,
		FastInterval: time.Hour,
		SlowInterval: time.Hour,
		MaxInactive:  3,
	}

	var svc *Service
	engine := worldboss.New(fetcher, cfg, worldboss.WithListener(worldboss.ListenerFunc(func(tr events.Transition) {
		svc.OnTransition(tr)
	})))
	svc = NewService(engine, DefaultConnectionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(runDone)
	}()
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-runDone
	})
	return engine, svc, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/worldboss"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed waiting for message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func activeSnapshot(msg Message) bool {
	if msg.Type != MessageTypeSnapshot {
		return false
	}
	var snap worldboss.Snapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		return false
	}
	return snap.IsActive
}

func waitForSubscribers(t *testing.T, engine *worldboss.Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for engine.Snapshot().Subscribers != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d subscribers, got %d", want, engine.Snapshot().Subscribers)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_StreamsSnapshots(t *testing.T) {
	fetcher := activeFetcher()
	engine, svc, srv := startGateway(t, fetcher)

	conn := dial(t, srv)
	msg := readUntil(t, conn, activeSnapshot)

	var snap worldboss.Snapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.Phase != worldboss.PhaseActive {
		t.Errorf("Expected phase active, got %s", snap.Phase)
	}
	if snap.RemainingMs <= 0 || snap.FormattedTime == "0:00" {
		t.Errorf("Expected a running countdown, got %d ms (%s)", snap.RemainingMs, snap.FormattedTime)
	}
	if got := svc.ConnectionCount(); got != 1 {
		t.Errorf("Expected 1 connection, got %d", got)
	}

	conn.Close()
	waitForSubscribers(t, engine, 0)
}

func TestWebSocket_ConnectionsShareOnePoller(t *testing.T) {
	fetcher := activeFetcher()
	engine, _, srv := startGateway(t, fetcher)

	first := dial(t, srv)
	readUntil(t, first, activeSnapshot)
	second := dial(t, srv)
	readUntil(t, second, activeSnapshot)

	waitForSubscribers(t, engine, 2)
	if got := fetcher.Calls(); got != 1 {
		t.Errorf("Expected a single bootstrap fetch for two connections, got %d", got)
	}

	first.Close()
	waitForSubscribers(t, engine, 1)
	if !engine.Snapshot().Ticking {
		t.Error("Expected countdown to keep ticking for the remaining connection")
	}
}

func TestWebSocket_ForwardsSessionExpired(t *testing.T) {
	engine, _, srv := startGateway(t, activeFetcher())

	conn := dial(t, srv)
	readUntil(t, conn, activeSnapshot)

	engine.ReportSessionExpired()

	readUntil(t, conn, func(msg Message) bool {
		return msg.Type == MessageTypeSessionExpired
	})
}

func TestConnectionStats(t *testing.T) {
	_, _, srv := startGateway(t, activeFetcher())

	conn := dial(t, srv)
	readUntil(t, conn, activeSnapshot)

	resp, err := http.Get(srv.URL + "/ws/stats")
	if err != nil {
		t.Fatalf("Stats request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats["total_connections"] != 1 {
		t.Errorf("Expected 1 total connection, got %d", stats["total_connections"])
	}
}

func TestStateHandler_AttachesBrieflyWhenIdle(t *testing.T) {
	engine, _, srv := startGateway(t, activeFetcher())

	resp, err := http.Get(srv.URL + "/api/worldboss/state")
	if err != nil {
		t.Fatalf("State request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap worldboss.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if !snap.IsActive {
		t.Error("Expected active snapshot from a fresh status check")
	}
	if snap.Window == nil {
		t.Error("Expected window in snapshot")
	}

	waitForSubscribers(t, engine, 0)
	if engine.Snapshot().Ticking {
		t.Error("Expected countdown torn down after the state request")
	}
}

func TestStateHandler_Methods(t *testing.T) {
	_, _, srv := startGateway(t, activeFetcher())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/worldboss/resume", http.StatusAccepted},
		{http.MethodPost, "/api/worldboss/refresh", http.StatusAccepted},
		{http.MethodGet, "/api/worldboss/resume", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/worldboss/refresh", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/worldboss/state", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		if err != nil {
			t.Fatalf("Failed to build request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, resp.StatusCode)
		}
	}
}

func TestStateHandler_RefreshWithSubscriberFetches(t *testing.T) {
	fetcher := activeFetcher()
	_, _, srv := startGateway(t, fetcher)

	conn := dial(t, srv)
	readUntil(t, conn, activeSnapshot)

	resp, err := http.Post(srv.URL+"/api/worldboss/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("Refresh request failed: %v", err)
	}
	resp.Body.Close()

	deadline := time.Now().Add(3 * time.Second)
	for fetcher.Calls() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected a second fetch after refresh, got %d", fetcher.Calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCountdownService_GetSnapshot(t *testing.T) {
	_, _, srv := startGateway(t, activeFetcher())

	client := connect.NewClient[emptypb.Empty, structpb.Struct](
		srv.Client(),
		srv.URL+CountdownServiceGetSnapshotProcedure,
	)

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	fields := resp.Msg.GetFields()
	if !fields["is_active"].GetBoolValue() {
		t.Error("Expected is_active true")
	}
	if got := fields["phase"].GetStringValue(); got != string(worldboss.PhaseActive) {
		t.Errorf("Expected phase active, got %q", got)
	}
}

func TestCountdownService_EngineStopped(t *testing.T) {
	engine := worldboss.New(activeFetcher(), worldboss.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.Run(ctx)

	svc := NewCountdownService(NewStateHandler(engine))
	_, err := svc.Resume(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if connect.CodeOf(err) != connect.CodeUnavailable {
		t.Errorf("Expected unavailable, got %v", err)
	}
}
