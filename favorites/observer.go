package favorites

import (
	"strconv"
	"strings"
	"sync"
)

// URIFavorites identifies the whole favorites collection
const URIFavorites = "favorites"

// FavoriteURI identifies a single favorites row
func FavoriteURI(rowID int64) string {
	return URIFavorites + "/" + strconv.FormatInt(rowID, 10)
}

// Observer is called with the URI of the data that changed
type Observer func(uri string)

type registration struct {
	uri         string
	descendants bool
	fn          Observer
}

func (r registration) matches(uri string) bool {
	if r.uri == uri {
		return true
	}
	return r.descendants && strings.HasPrefix(uri, r.uri+"/")
}

type observers struct {
	mu   sync.Mutex
	next uint64
	regs map[uint64]registration
}

func newObservers() *observers {
	return &observers{regs: make(map[uint64]registration)}
}

func (o *observers) register(uri string, descendants bool, fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	o.regs[id] = registration{uri: uri, descendants: descendants, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.regs, id)
			o.mu.Unlock()
		})
	}
}

// notify runs observers outside the lock so they may call back into the store
func (o *observers) notify(uri string) {
	o.mu.Lock()
	var targets []Observer
	for _, r := range o.regs {
		if r.matches(uri) {
			targets = append(targets, r.fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range targets {
		fn(uri)
	}
}
