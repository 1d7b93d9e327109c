package depot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorldAdvanceTickIncrementsAndRotatesEvents(t *testing.T) {
	w := NewWorld()
	require.Equal(t, uint32(0), w.Tick())

	writer := Writer[int](w.Events())
	writer.Send(1)

	require.Equal(t, uint32(1), w.AdvanceTick())
	require.Equal(t, uint32(1), w.Tick())

	reader := Reader[int](w.Events())
	require.Equal(t, []int{1}, reader.Read())
}

func TestWorldLockExcludesRLock(t *testing.T) {
	w := NewWorld()
	rlocked := make(chan struct{})

	w.Lock()
	go func() {
		w.RLock()
		close(rlocked)
		w.RUnlock()
	}()

	select {
	case <-rlocked:
		t.Fatal("RLock should not acquire while the World is exclusively locked")
	case <-time.After(20 * time.Millisecond):
	}

	w.Unlock()
	<-rlocked
}

func TestWorldSparseComponentRoundTrip(t *testing.T) {
	w := NewWorld()
	tag := FactoryNewSparseComponent[string](w)

	e := EntityID{}
	require.False(t, HasSparse(w, tag, e))

	SetSparse(w, tag, e, "marker")
	v, ok := GetSparse(w, tag, e)
	require.True(t, ok)
	require.Equal(t, "marker", *v)
	require.True(t, HasSparse(w, tag, e))

	require.True(t, RemoveSparse(w, tag, e))
	require.False(t, HasSparse(w, tag, e))
}
