package main

import (
	"github.com/cockroachdb/pebble"
	jsoniter "github.com/json-iterator/go"
	"github.com/jburman/ZeroG-sub001/provider"
)

// metadata records share the ledger database under the 'M' prefix
const metadataPrefix = 'M'

func metadataKey(name string) []byte {
	return append([]byte{metadataPrefix}, name...)
}

type catalog struct {
	db *pebble.DB
}

func (c catalog) save(md provider.ObjectMetadata) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(md)
	if err != nil {
		return err
	}
	return c.db.Set(metadataKey(md.ObjectFullName), data, pebble.Sync)
}

func (c catalog) remove(name string) error {
	return c.db.Delete(metadataKey(name), pebble.Sync)
}

func (c catalog) load() ([]provider.ObjectMetadata, error) {
	it, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{metadataPrefix},
		UpperBound: []byte{metadataPrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var all []provider.ObjectMetadata
	for it.First(); it.Valid(); it.Next() {
		var md provider.ObjectMetadata
		if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(it.Value(), &md); err != nil {
			return nil, err
		}
		all = append(all, md)
	}
	return all, it.Error()
}
