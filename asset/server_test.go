package asset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/depotengine/depot"
)

type textAsset struct{ Body string }

func textLoader() Loader {
	return LoaderFunc{
		Exts: []string{"txt"},
		Fn: func(path string, data []byte) (any, error) {
			return textAsset{Body: string(data)}, nil
		},
	}
}

func TestAssetServerLoadAndHandleResultsDeliversDecodedValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	world := depot.NewWorld()
	assets := NewAssets[textAsset](world)
	reader := depot.Reader[AssetEvent[textAsset]](world.Events())

	s := NewAssetServer(2)
	RegisterLoader[textAsset](s, textLoader())

	h := Load[textAsset](s, assets, path)
	require.Equal(t, path, h.Path())
	require.True(t, h.LoaderManaged())

	require.Eventually(t, func() bool {
		HandleResults[textAsset](s, assets)
		_, ok := assets.Get(h.ID())
		return ok
	}, time.Second, time.Millisecond)

	v, ok := assets.Get(h.ID())
	require.True(t, ok)
	require.Equal(t, "hello", v.Body)

	var sawLoaded bool
	for _, ev := range reader.Read() {
		if ev.Kind == AssetLoadedWithDependencies {
			sawLoaded = true
		}
	}
	require.True(t, sawLoaded, "HandleResults should publish AssetLoadedWithDependencies on success")
}

func TestAssetServerLoadDedupsRepeatedCallsForSamePathAndType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	world := depot.NewWorld()
	assets := NewAssets[textAsset](world)
	s := NewAssetServer(2)
	RegisterLoader[textAsset](s, textLoader())

	first := Load[textAsset](s, assets, path)
	second := Load[textAsset](s, assets, path)

	require.Same(t, first, second, "Load should return the same handle for a repeated (path, T) pair")
}

func TestAssetServerLoadBindsUUIDBeforeLoadCompletes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi there"), 0o644))

	world := depot.NewWorld()
	assets := NewAssets[textAsset](world)
	s := NewAssetServer(2)
	RegisterLoader[textAsset](s, textLoader())

	h := Load[textAsset](s, assets, path)
	require.NotEqual(t, uuid.Nil, h.UUID(), "Load must bind a deterministic UUID immediately")

	_, ok := assets.GetByUUID(h.UUID())
	require.False(t, ok, "the value isn't present until HandleResults inserts it")

	require.Eventually(t, func() bool {
		HandleResults[textAsset](s, assets)
		_, ok := assets.GetByUUID(h.UUID())
		return ok
	}, time.Second, time.Millisecond)

	v, ok := assets.GetByUUID(h.UUID())
	require.True(t, ok)
	require.Equal(t, "hi there", v.Body)
}

func TestAssetServerLoadWithMissingLoaderNeverInsertsValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gltf")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	world := depot.NewWorld()
	assets := NewAssets[textAsset](world)
	s := NewAssetServer(2)

	h := Load[textAsset](s, assets, path)

	require.Never(t, func() bool {
		HandleResults[textAsset](s, assets)
		_, ok := assets.Get(h.ID())
		return ok
	}, 50*time.Millisecond, 5*time.Millisecond, "a load with no registered loader must never populate the slot")
}

func TestAssetServerLoadWithUnreadableFileNeverInsertsValue(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[textAsset](world)
	s := NewAssetServer(2)
	RegisterLoader[textAsset](s, textLoader())

	h := Load[textAsset](s, assets, filepath.Join(t.TempDir(), "does-not-exist.txt"))

	require.Never(t, func() bool {
		HandleResults[textAsset](s, assets)
		_, ok := assets.Get(h.ID())
		return ok
	}, 50*time.Millisecond, 5*time.Millisecond, "a read failure must never populate the slot")
}
