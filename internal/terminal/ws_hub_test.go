package terminal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/glazecorp/glaze-engine/internal/model"
)

func waitClients(t *testing.T, ctx context.Context, hub *WSHub, want int) {
	t.Helper()
	for hub.Clients(ctx) != want {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %d clients", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWSHub_BroadcastsToClients(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewWSHub(testLogger())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, ctx, hub, 1)

	hub.PublishGlaze(model.GlazeRecord{EpochID: 7, Miner: strings.ToLower(common.Address{1}.Hex())})
	hub.PublishView(model.MinerView{SnapshotID: "snap-1", EpochID: 7})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second WSMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read glaze: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read miner: %v", err)
	}
	if first.Type != "glaze" || first.Glaze == nil || first.Glaze.EpochID != 7 {
		t.Errorf("unexpected glaze message: %+v", first)
	}
	if second.Type != "miner" || second.Miner == nil || second.Miner.SnapshotID != "snap-1" {
		t.Errorf("unexpected miner message: %+v", second)
	}

	conn.Close()
	waitClients(t, ctx, hub, 0)
}

func TestWSHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewWSHub(testLogger())
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.PublishView(model.MinerView{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked with no hub running")
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Errorf("expected a full buffer, got %d", len(hub.broadcast))
	}
}

func TestWSHub_StoppedHubRejectsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewWSHub(testLogger())
	go hub.Run(ctx)
	cancel()
	<-hub.stopped

	if n := hub.Clients(context.Background()); n != 0 {
		t.Errorf("Clients = %d after stop", n)
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg json.RawMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Error("expected the stopped hub to close the connection")
	}
}
