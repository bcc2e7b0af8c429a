package ledger

import (
	"net/http"
	"sync"
)

// FetchSlot holds the transport that API calls are currently sent through.
// It starts out holding the native transport and is only ever replaced, never emptied.
type FetchSlot struct {
	native http.RoundTripper

	cur     http.RoundTripper
	curLock sync.RWMutex
}

// NewFetchSlot returns a slot holding the given native transport.
// If native is nil, http.DefaultTransport is used.
func NewFetchSlot(native http.RoundTripper) *FetchSlot {
	if native == nil {
		native = http.DefaultTransport
	}

	return &FetchSlot{
		native: native,
		cur:    native,
	}
}

// Get returns the currently installed transport.
func (slot *FetchSlot) Get() http.RoundTripper {
	slot.curLock.RLock()
	defer slot.curLock.RUnlock()

	return slot.cur
}

// Set installs rt as the current transport.
// A nil rt reinstalls the native transport.
func (slot *FetchSlot) Set(rt http.RoundTripper) {
	slot.curLock.Lock()
	defer slot.curLock.Unlock()

	if rt == nil {
		rt = slot.native
	}

	slot.cur = rt
}

// Native returns the transport the slot was created with.
// Anything that builds a replacement transport must send its own requests through this,
// otherwise it would end up calling itself once installed.
func (slot *FetchSlot) Native() http.RoundTripper {
	return slot.native
}

// RoundTrip sends the request through whatever transport is installed at the time of the call.
func (slot *FetchSlot) RoundTrip(req *http.Request) (*http.Response, error) {
	return slot.Get().RoundTrip(req)
}
