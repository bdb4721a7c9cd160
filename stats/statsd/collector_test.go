package statsd

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/sift-lang/sift/lib/testutils"
	"github.com/sift-lang/sift/lib/types"
	"github.com/sift-lang/sift/stats"
)

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := NewConfig()
	applied := base.Apply(Config{
		Addr:         null.StringFrom("statsd:8125"),
		PushInterval: types.NullDurationFrom(10 * time.Millisecond),
	})
	assert.Equal(t, "statsd:8125", applied.Addr.String)
	assert.True(t, applied.Addr.Valid)
	assert.Equal(t, 10*time.Millisecond, applied.PushInterval.TimeDuration())
	// Untouched fields keep their defaults.
	assert.Equal(t, "sift.", applied.Namespace.String)
	assert.Equal(t, int64(20), applied.BufferSize.Int64)
}

// listenUDP spins up a local UDP listener and forwards everything it reads to
// the returned channel.
func listenUDP(t *testing.T) (string, <-chan string) {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "localhost:0")
	require.NoError(t, err)
	listener, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	ch := make(chan string, 20)
	go func() {
		defer close(ch)
		var buf [4096]byte
		for {
			n, _, err := listener.ReadFromUDP(buf[:])
			if err != nil {
				return
			}
			ch <- string(buf[:n])
		}
	}()
	return listener.LocalAddr().String(), ch
}

func TestCollector(t *testing.T) {
	t.Parallel()

	addr, datagrams := listenUDP(t)

	conf := NewConfig().Apply(Config{
		Addr:         null.StringFrom(addr),
		Namespace:    null.StringFrom("testing.things."),
		BufferSize:   null.IntFrom(5),
		PushInterval: types.NullDurationFrom(10 * time.Millisecond),
	})
	collector := New(testutils.NewLogger(t), conf)
	require.NoError(t, collector.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		collector.Run(ctx)
	}()

	now := time.Now()
	slowPaths := stats.New("typecheck.slow_path.committed", stats.Counter)
	duration := stats.New("typecheck.slow_path.duration", stats.Timer)
	files := stats.New("typecheck.files", stats.Gauge)

	testdata := []struct {
		sample   stats.Sample
		expected string
	}{
		{stats.Sample{Metric: slowPaths, Time: now, Value: 12}, "testing.things.typecheck.slow_path.committed:12|c"},
		{stats.Sample{Metric: files, Time: now, Value: 13}, "testing.things.typecheck.files:13.000000|g"},
		{stats.Sample{Metric: duration, Time: now, Value: 14}, "testing.things.typecheck.slow_path.duration:14.000000|ms"},
	}
	for _, data := range testdata {
		collector.Collect([]stats.Sample{data.sample})
		select {
		case got := <-datagrams:
			assert.Contains(t, got, data.expected)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", data.expected)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestCollectorBatchesIntoOneDatagram(t *testing.T) {
	t.Parallel()

	addr, datagrams := listenUDP(t)

	conf := NewConfig().Apply(Config{
		Addr:         null.StringFrom(addr),
		Namespace:    null.StringFrom("sift."),
		BufferSize:   null.IntFrom(10),
		PushInterval: types.NullDurationFrom(10 * time.Millisecond),
	})
	collector := New(testutils.NewLogger(t), conf)
	require.NoError(t, collector.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go collector.Run(ctx)

	m := stats.New("edits", stats.Counter)
	collector.Collect([]stats.Sample{
		{Metric: m, Time: time.Now(), Value: 1},
		{Metric: m, Time: time.Now(), Value: 2},
		{Metric: m, Time: time.Now(), Value: 3},
	})

	select {
	case got := <-datagrams:
		// All three lines fit the buffer, so they arrive in one datagram.
		assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(got), "\n")))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}
