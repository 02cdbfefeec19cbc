// Package versions keeps the per object type write counters the query
// cache is stamped with.
//
// # Key layout in Pebble
//
//	'V' + object type name -> u32, big endian
//	'R' + object type name -> u32, the last version before a Remove
//
// A missing key reads as version 0. Bumps are written with pebble.Sync, so
// a version once observed is never observed again after a restart. Remove
// keeps the last version under 'R' and the next Bump continues from it, so
// a removed entry never hands out a version it handed out before.
package versions

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrBadVersion = errors.New("zerog: bad version record")

type Ledger struct {
	db     *pebble.DB
	ownsDB bool
	log    utils.Logger

	// bumps and removals are serialized; reads go through current
	lock    sync.Mutex
	current *xsync.MapOf[string, uint32]
}

func versionKey(name string) []byte {
	return append([]byte{'V'}, name...)
}

func removedKey(name string) []byte {
	return append([]byte{'R'}, name...)
}

// Open opens (or creates) a pebble database at dirname that the ledger owns.
func Open(dirname string, opts *pebble.Options, log utils.Logger) (*Ledger, error) {
	db, err := pebble.Open(dirname, opts)
	if err != nil {
		return nil, err
	}
	l := New(db, log)
	l.ownsDB = true
	return l, nil
}

// New builds a ledger over a database shared with other users.
func New(db *pebble.DB, log utils.Logger) *Ledger {
	return &Ledger{
		db:      db,
		log:     log,
		current: xsync.NewMapOf[string, uint32](),
	}
}

func (l *Ledger) read(name string) (uint32, error) {
	return l.get(versionKey(name), name)
}

func (l *Ledger) get(key []byte, name string) (uint32, error) {
	val, closer, err := l.db.Get(key)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(val) != 4 {
		return 0, fmt.Errorf("%w: %q has %d bytes", ErrBadVersion, name, len(val))
	}
	return binary.BigEndian.Uint32(val), nil
}

// Current returns the latest version of an object type, 0 if it was never
// bumped.
func (l *Ledger) Current(name string) (uint32, error) {
	if v, ok := l.current.Load(name); ok {
		return v, nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if v, ok := l.current.Load(name); ok {
		return v, nil
	}
	v, err := l.read(name)
	if err != nil {
		return 0, err
	}
	l.current.Store(name, v)
	return v, nil
}

// Bump durably increments the version of an object type and returns it.
func (l *Ledger) Bump(name string) (uint32, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	v, ok := l.current.Load(name)
	if !ok {
		var err error
		if v, err = l.read(name); err != nil {
			return 0, err
		}
	}
	if v == 0 {
		last, err := l.get(removedKey(name), name)
		if err != nil {
			return 0, err
		}
		v = last
	}
	v++
	if v == 0 { // wrapped; 0 is reserved for "never written"
		v = 1
	}
	if err := l.db.Set(versionKey(name), binary.BigEndian.AppendUint32(nil, v), pebble.Sync); err != nil {
		l.current.Delete(name)
		return 0, err
	}
	l.current.Store(name, v)
	if l.log != nil {
		l.log.Debug("version bumped", "object_type", name, "version", v)
	}
	return v, nil
}

// Remove drops the version entry of an object type: Current reads 0 until
// the next Bump, which continues above every version handed out before.
func (l *Ledger) Remove(name string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	v, err := l.read(name)
	if err != nil {
		return err
	}
	b := l.db.NewBatch()
	defer b.Close()
	if v > 0 {
		if err = b.Set(removedKey(name), binary.BigEndian.AppendUint32(nil, v), nil); err != nil {
			return err
		}
	}
	if err = b.Delete(versionKey(name), nil); err != nil {
		return err
	}
	if err = b.Commit(pebble.Sync); err != nil {
		return err
	}
	l.current.Delete(name)
	return nil
}

// Database exposes the underlying store, e.g. for a metrics collector.
func (l *Ledger) Database() *pebble.DB {
	return l.db
}

func (l *Ledger) Close() error {
	if !l.ownsDB || l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
