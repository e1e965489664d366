package cache

import "time"

// Source says what triggered a fetch.
type Source string

const (
	SourcePoll   Source = "poll"
	SourceDirect Source = "direct"
)

// Op names a mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Observer receives cache events, typically for metrics.
//
// ObserveSubscribers reports the subscriber total for an endpoint path, summed
// over every key that differs only in its query string. It is called with the
// cache lock held so successive counts arrive in order; implementations must
// not call back into the cache.
type Observer interface {
	ObserveFetch(key string, source Source, took time.Duration, err error)
	ObserveMutation(key string, op Op, err error)
	ObserveSubscribers(endpoint string, n int)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, Source, time.Duration, error) {}
func (nopObserver) ObserveMutation(string, Op, error)                  {}
func (nopObserver) ObserveSubscribers(string, int)                     {}
