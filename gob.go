package partialcache

import (
	"encoding/gob"
	"errors"
	"io"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type dumpEntry struct {
	Key        string
	Value      string
	Expiration int64
}

// Dump saves live fragments and returns a number of processed entries.
func (c *Memory) Dump(w io.Writer) (int, error) {
	encoder := gob.NewEncoder(w)
	n := 0

	for k, item := range c.data.Items() {
		s, ok := item.Object.(string)
		if !ok {
			continue
		}

		if err := encoder.Encode(dumpEntry{Key: k, Value: s, Expiration: item.Expiration}); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

// Restore loads fragments and returns number of processed entries, entries expired since dump are skipped.
func (c *Memory) Restore(r io.Reader) (int, error) {
	var (
		decoder = gob.NewDecoder(r)
		now     = time.Now()
		n       = 0
	)

	for {
		var e dumpEntry

		err := decoder.Decode(&e)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return n, err
		}

		ttl := gocache.NoExpiration

		if e.Expiration > 0 {
			exp := time.Unix(0, e.Expiration)
			if !exp.After(now) {
				continue
			}

			ttl = exp.Sub(now)
		}

		c.data.Set(e.Key, e.Value, ttl)

		n++
	}

	return n, nil
}
