package consumer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/bus"
	"github.com/workmait/digestd/internal/dlq"
	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/node"
	"github.com/workmait/digestd/internal/pipeline"
	"github.com/workmait/digestd/internal/service"
	"github.com/workmait/digestd/internal/store"
)

type stubFiles struct{}

func (stubFiles) Exists(context.Context, string) (bool, error) { return true, nil }
func (stubFiles) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(path)), nil
}

type stubParser struct{}

func (stubParser) Parse(_ context.Context, path string, _ event.FileType, metadata map[string]string) ([]node.Document, error) {
	return []node.Document{{Text: path, Metadata: metadata}}, nil
}

type stubSplitter struct{}

func (stubSplitter) Split(docs []node.Document, nextID func() string) ([]node.Node, error) {
	nodes := make([]node.Node, 0, len(docs))
	for _, d := range docs {
		nodes = append(nodes, node.Node{ID: nextID(), Text: d.Text, Metadata: d.Metadata})
	}
	return nodes, nil
}

func setupDigest(t *testing.T) (*service.Digest, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	p, err := pipeline.New(pipeline.Config{
		Name:     "standard",
		Type:     pipeline.TypeVector,
		Files:    stubFiles{},
		Parser:   stubParser{},
		Splitter: stubSplitter{},
		Store:    mem,
	})
	require.NoError(t, err)

	registry := pipeline.NewRegistry()
	require.NoError(t, registry.Register(p))

	svc := service.New(registry, map[pipeline.Type]store.Store{pipeline.TypeVector: mem}, nil, nil)
	return svc, mem
}

func setupBus(t *testing.T, opts ...bus.Option) bus.Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	opts = append([]bus.Option{bus.WithBlockInterval(20 * time.Millisecond)}, opts...)
	return bus.NewRedis(client, opts...)
}

// startDispatcher registers every binding's group up front so events
// published immediately afterwards are not lost to the groups' "$"
// start position, then runs the dispatcher until the returned stop
// function is called.
func startDispatcher(t *testing.T, b bus.Bus, bindings []Binding) (stop func()) {
	t.Helper()
	for _, bd := range bindings {
		require.NoError(t, b.Register(context.Background(), bd.EventType, bd.Group))
	}

	d := NewDispatcher(b, nil)
	d.Bind(bindings...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not stop on context cancel")
		}
	}
}

func TestDispatcher_DeliversPublishedEventToService(t *testing.T) {
	svc, mem := setupDigest(t)
	b := setupBus(t)

	stop := startDispatcher(t, b, Bindings(svc, nil, nil, 0))
	defer stop()

	req := event.AddNodesRequest{
		Namespace:  "acme",
		Strategies: []string{"standard"},
		Files: []event.FileRef{
			{FileID: "f1", FileType: event.FileTypePDF, FilePath: "docs/f1.pdf"},
		},
	}
	fields, err := req.Fields()
	require.NoError(t, err)
	_, err = b.Publish(context.Background(), event.TypeAddNodes, fields)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(mem.Nodes("acme:vector")) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDispatcher_RunsEveryBinding(t *testing.T) {
	svc, mem := setupDigest(t)
	b := setupBus(t)

	stop := startDispatcher(t, b, Bindings(svc, nil, nil, 0))
	defer stop()

	add := event.AddNodesRequest{
		Namespace:  "acme",
		Strategies: []string{"standard"},
		Files: []event.FileRef{
			{FileID: "f1", FileType: event.FileTypePDF, FilePath: "docs/f1.pdf"},
		},
	}
	addFields, err := add.Fields()
	require.NoError(t, err)
	_, err = b.Publish(context.Background(), event.TypeAddNodes, addFields)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(mem.Nodes("acme:vector")) == 1
	}, 5*time.Second, 20*time.Millisecond)

	del := event.DeleteNodesRequest{Namespace: "acme", FileIDs: []string{"f1"}}
	delFields, err := del.Fields()
	require.NoError(t, err)
	_, err = b.Publish(context.Background(), event.TypeDeleteNodes, delFields)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(mem.Nodes("acme:vector")) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

type recordingDLQ struct {
	entries []dlq.Entry
	err     error
}

func (r *recordingDLQ) Write(_ context.Context, entry dlq.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func TestWithDeadLetter_DivertsAfterBudgetExhausted(t *testing.T) {
	q := &recordingDLQ{}
	handlerErr := errors.New("handler broken")
	h := Chain(
		func(context.Context, bus.Message) error { return handlerErr },
		WithDeadLetter(q, nil, event.TypeAddNodes, 3),
	)

	// Below the budget the failure propagates and nothing is diverted.
	err := h(context.Background(), bus.Message{ID: "1-0", Deliveries: 2})
	assert.ErrorIs(t, err, handlerErr)
	assert.Empty(t, q.entries)

	// At the budget the event is diverted and acknowledged.
	err = h(context.Background(), bus.Message{ID: "1-0", Deliveries: 3, Fields: map[string]string{"namespace": "acme"}})
	assert.NoError(t, err)
	require.Len(t, q.entries, 1)
	assert.Equal(t, event.TypeAddNodes, q.entries[0].EventType)
	assert.Equal(t, "1-0", q.entries[0].EntryID)
	assert.Equal(t, int64(3), q.entries[0].Deliveries)
	assert.Equal(t, "acme", q.entries[0].Fields["namespace"])
}

func TestWithDeadLetter_WriteFailureKeepsEventPending(t *testing.T) {
	q := &recordingDLQ{err: errors.New("jetstream down")}
	handlerErr := errors.New("handler broken")
	h := Chain(
		func(context.Context, bus.Message) error { return handlerErr },
		WithDeadLetter(q, nil, event.TypeAddNodes, 1),
	)

	err := h(context.Background(), bus.Message{ID: "1-0", Deliveries: 5})
	assert.ErrorIs(t, err, handlerErr)
}

func TestChain_OrderOutermostFirst(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next bus.Handler) bus.Handler {
			return func(ctx context.Context, msg bus.Message) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}

	h := Chain(
		func(context.Context, bus.Message) error { return nil },
		mw("outer"), mw("inner"),
	)
	require.NoError(t, h(context.Background(), bus.Message{}))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
