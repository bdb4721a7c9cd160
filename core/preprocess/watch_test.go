package preprocess

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sift-lang/sift/lib/testutils"
)

func TestWatchEmitsOnChange(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "src/app.rb", []byte("module A\nend\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := Watch(ctx, fs, "src", 10*time.Millisecond, testutils.NewLogger(t))

	// The baseline walk must not emit anything for pre-existing files.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for %q", ev.Path)
	case <-time.After(50 * time.Millisecond):
	}

	// Touch the file with new contents and a new modification time.
	edited := []byte("module A\n  def x\n  end\nend\n")
	require.NoError(t, afero.WriteFile(fs, "src/app.rb", edited, 0o644))
	require.NoError(t, fs.Chtimes("src/app.rb", time.Now(), time.Now().Add(time.Second)))

	select {
	case ev := <-events:
		assert.Equal(t, "src/app.rb", ev.Path)
		assert.Equal(t, edited, ev.Contents)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("src", 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	events := Watch(ctx, fs, "src", 10*time.Millisecond, testutils.NewLogger(t))
	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open, "channel must be closed after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
