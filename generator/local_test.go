package generator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_DefaultPayload(t *testing.T) {
	g := NewLocal()

	for range 3 {
		p, err := g.Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DefaultPayload, p)
	}
}

func TestLocal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal().Generate(ctx)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFixtures_RoundRobin(t *testing.T) {
	g, err := LoadFixtures([]string{"testdata/fixtures/**/*.json"})
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	var got []string
	for range 4 {
		p, err := g.Generate(context.Background())
		require.NoError(t, err)
		got = append(got, p.To)
	}
	// nested/batch.json sorts before single.json
	assert.Equal(t, []string{"Linus", "Barbara", "Ada", "Linus"}, got)
}

func TestLoadFixtures_OverlappingPatterns(t *testing.T) {
	g, err := LoadFixtures([]string{"testdata/fixtures/*.json", "testdata/fixtures/**/single.json"})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestLoadFixtures_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("no matches", func(t *testing.T) {
		_, err := LoadFixtures([]string{filepath.Join(dir, "*.json")})
		assert.ErrorContains(t, err, "no fixture files match")
	})

	t.Run("malformed pattern", func(t *testing.T) {
		_, err := LoadFixtures([]string{"[unclosed"})
		assert.Error(t, err)
	})

	t.Run("bad JSON", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := LoadFixtures([]string{path})
		assert.ErrorContains(t, err, "parse fixture")
	})

	t.Run("invalid payload", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"to": "", "from": "a", "heading": "b", "message": "c"}`), 0o644))
		_, err := LoadFixtures([]string{path})
		assert.ErrorIs(t, err, ErrGeneration)
	})
}

func TestLocal_ConcurrentGenerate(t *testing.T) {
	g, err := LoadFixtures([]string{"testdata/fixtures/**/*.json"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	counts := make(map[string]int)
	var mu sync.Mutex
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := g.Generate(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			counts[p.To]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"Ada": 10, "Barbara": 10, "Linus": 10}, counts)
}
