package provider

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/collab"
	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/replica"
	"github.com/inkdrift/inkdrift/internal/shape"
)

const waitFor = 5 * time.Second

func startRelay(t *testing.T) string {
	t.Helper()
	hub := collab.NewHub(collab.HubOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/ws/{roomId}", hub.ServeWS(nil, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
}

type node struct {
	replica  *replica.Replica
	aware    *awareness.Awareness
	provider *Provider
	cancel   context.CancelFunc
	done     chan struct{}
}

func join(t *testing.T, url, name string) *node {
	t.Helper()
	doc := crdt.NewDoc("")
	n := &node{
		replica: replica.New(doc, replica.Options{}),
		aware:   awareness.New(doc.ClientID()),
		done:    make(chan struct{}),
	}
	n.provider = New(Options{
		URL:               url,
		Name:              name,
		Doc:               doc,
		Awareness:         n.aware,
		MinBackoff:        10 * time.Millisecond,
		AwarenessInterval: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go func() {
		defer close(n.done)
		_ = n.provider.Run(ctx)
	}()
	t.Cleanup(n.stop)

	require.Eventually(t, n.provider.Synced, waitFor, 5*time.Millisecond)
	return n
}

// stop may be called more than once.
func (n *node) stop() {
	n.cancel()
	<-n.done
}

func box(id string) shape.Shape {
	return shape.NewBox(id, shape.KindRect, "red", geom.Box{X2: 10, Y2: 10}, 0)
}

func TestShapesReachOtherPeers(t *testing.T) {
	url := startRelay(t) + "room1"
	a := join(t, url, "ada")
	b := join(t, url, "bob")

	require.NoError(t, a.replica.Push(box("shape_1")))
	require.Eventually(t, func() bool {
		_, ok := b.replica.Shapes().Get("shape_1")
		return ok
	}, waitFor, 5*time.Millisecond)

	b.replica.Remove("shape_1")
	require.Eventually(t, func() bool { return a.replica.Shapes().Len() == 0 }, waitFor, 5*time.Millisecond)
}

func TestOfflineEditsSyncOnConnect(t *testing.T) {
	url := startRelay(t) + "room1"
	a := join(t, url, "ada")
	require.NoError(t, a.replica.Push(box("shape_1")))

	// b edits before it ever connects.
	doc := crdt.NewDoc("")
	rb := replica.New(doc, replica.Options{})
	require.NoError(t, rb.Push(box("shape_2")))
	pb := New(Options{URL: url, Doc: doc, Awareness: awareness.New(doc.ClientID())})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pb.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return rb.Shapes().Len() == 2 }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return a.replica.Shapes().Len() == 2 }, waitFor, 5*time.Millisecond)
}

func TestPresenceAndDisconnect(t *testing.T) {
	url := startRelay(t) + "room1"
	a := join(t, url, "ada")
	b := join(t, url, "bob")

	require.NoError(t, a.aware.SetLocalField(awareness.FieldCursor, geom.Point{X: 1, Y: 2}))
	require.Eventually(t, func() bool {
		_, ok := b.aware.RemoteCursors()[a.aware.ClientID()]
		return ok
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, b.provider.Peers())

	a.stop()
	require.Eventually(t, func() bool { return b.provider.Peers() == 0 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, StatusDisconnected, a.provider.Status())
}

func TestRetriesWhileRelayUnreachable(t *testing.T) {
	var mu sync.Mutex
	var statuses []Status
	doc := crdt.NewDoc("")
	p := New(Options{
		URL:        "ws://127.0.0.1:1/ws/room1",
		Doc:        doc,
		Awareness:  awareness.New(doc.ClientID()),
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		OnStatus: func(s Status) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s)
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Run(ctx), context.DeadlineExceeded)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(statuses), 4, "at least two attempts")
	assert.Equal(t, StatusConnecting, statuses[0])
	assert.Equal(t, StatusDisconnected, statuses[1])
	assert.NotContains(t, statuses, StatusConnected)
	assert.False(t, p.Synced())
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, 10*time.Second))
}
