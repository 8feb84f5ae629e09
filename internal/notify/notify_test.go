package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishReachesSubscribers(t *testing.T) {
	n, err := New(2, nil)
	require.NoError(t, err)
	defer n.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	var got []string

	for i := 0; i < 2; i++ {
		n.Subscribe(DigestComplete, func(data map[string]string) {
			mu.Lock()
			got = append(got, data["namespace"])
			mu.Unlock()
			wg.Done()
		})
	}

	n.Publish(DigestComplete, map[string]string{"namespace": "acme"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribers were not notified")
	}

	assert.Equal(t, []string{"acme", "acme"}, got)
}

func TestNotifier_UnsubscribeStopsDelivery(t *testing.T) {
	n, err := New(1, nil)
	require.NoError(t, err)
	defer n.Close()

	delivered := make(chan struct{}, 1)
	unsubscribe := n.Subscribe(DigestComplete, func(map[string]string) {
		delivered <- struct{}{}
	})
	unsubscribe()

	n.Publish(DigestComplete, map[string]string{"namespace": "acme"})

	select {
	case <-delivered:
		t.Fatal("unsubscribed callback was invoked")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifier_PublishWithoutSubscribersIsNoop(t *testing.T) {
	n, err := New(1, nil)
	require.NoError(t, err)
	defer n.Close()

	// Must not panic or block.
	n.Publish("unknown.event", map[string]string{"k": "v"})
}
