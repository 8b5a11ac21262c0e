package queue

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) (string, *int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var accepted int32
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&accepted, 1)
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/", &accepted
}

func TestPublishGivesUpOnSilentBroker(t *testing.T) {
	url, accepted := silentBroker(t)
	now := time.Now()
	p := NewPublisher(url, "auth.events")
	p.dialTimeout = 100 * time.Millisecond
	p.now = func() time.Time { return now }

	start := time.Now()
	err := p.Publish(context.Background(), NewEvent(EventSessionCreated, "u-1"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(accepted))

	// within the cooldown no new connection is attempted
	start = time.Now()
	err = p.Publish(context.Background(), NewEvent(EventSessionReused, "u-1"))
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(accepted))

	// once it has passed the broker is tried again
	now = now.Add(p.cooldown + time.Second)
	err = p.Publish(context.Background(), NewEvent(EventSessionEnded, "u-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBrokerUnavailable)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(accepted) == 2 }, time.Second, 10*time.Millisecond)
}
