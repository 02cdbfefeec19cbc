package versions

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memLedger(t *testing.T, fs vfs.FS) *Ledger {
	l, err := Open("ledger", &pebble.Options{FS: fs}, utils.NewDefaultLogger(slog.LevelError))
	require.NoError(t, err)
	return l
}

func TestLedger_BumpCurrent(t *testing.T) {
	l := memLedger(t, vfs.NewMem())
	defer l.Close()

	v, err := l.Current("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 0, v)

	for i := 1; i <= 3; i++ {
		v, err = l.Bump("app.Person")
		assert.NoError(t, err)
		assert.EqualValues(t, i, v)
	}
	v, err = l.Current("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 3, v)

	v, err = l.Current("app.Order")
	assert.NoError(t, err)
	assert.EqualValues(t, 0, v)
}

func TestLedger_Durable(t *testing.T) {
	fs := vfs.NewMem()
	l := memLedger(t, fs)
	_, err := l.Bump("app.Person")
	require.NoError(t, err)
	_, err = l.Bump("app.Person")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l = memLedger(t, fs)
	defer l.Close()
	v, err := l.Current("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 2, v)
	v, err = l.Bump("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestLedger_Remove(t *testing.T) {
	fs := vfs.NewMem()
	l := memLedger(t, fs)

	for i := 0; i < 2; i++ {
		_, err := l.Bump("app.Person")
		require.NoError(t, err)
	}
	assert.NoError(t, l.Remove("app.Person"))
	v, err := l.Current("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 0, v)

	// versions 1 and 2 are never handed out again
	v, err = l.Bump("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 3, v)

	assert.NoError(t, l.Remove("app.Person"))
	require.NoError(t, l.Close())
	l = memLedger(t, fs)
	defer l.Close()
	v, err = l.Current("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 0, v)
	v, err = l.Bump("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 4, v)

	// never bumped
	assert.NoError(t, l.Remove("app.Order"))
	v, err = l.Bump("app.Order")
	assert.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestLedger_ConcurrentBumps(t *testing.T) {
	l := memLedger(t, vfs.NewMem())
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := l.Bump("app.Person")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	v, err := l.Current("app.Person")
	assert.NoError(t, err)
	assert.EqualValues(t, 200, v)
}

func TestCollector(t *testing.T) {
	l := memLedger(t, vfs.NewMem())
	defer l.Close()
	_, err := l.Bump("app.Person")
	require.NoError(t, err)

	c := NewCollector(l)
	assert.Equal(t, 6, testutil.CollectAndCount(c))
}
