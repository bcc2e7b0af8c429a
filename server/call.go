package server

import (
	"net/http"
	"net/url"

	"golang.org/x/exp/slices"
)

// Call is a request handled by the server, as seen by a call watcher.
type Call struct {
	URL    *url.URL
	Method string
	Status int

	RequestHeader http.Header
	RequestBody   []byte

	ResponseHeader http.Header
	ResponseBody   []byte
}

type callWatcher struct {
	paths  []string
	callFn func(Call)
}

func newCallWatcher(fn func(Call), paths ...string) callWatcher {
	return callWatcher{
		paths:  paths,
		callFn: fn,
	}
}

func (watcher *callWatcher) isWatching(path string) bool {
	if len(watcher.paths) == 0 {
		return true
	}

	return slices.Contains(watcher.paths, path)
}

func (watcher *callWatcher) publish(call Call) {
	watcher.callFn(call)
}
