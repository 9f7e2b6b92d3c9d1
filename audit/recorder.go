package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultBufferSize = 1000

// WriteTimeout bounds each sink write.
var WriteTimeout = 5 * time.Second

// Recorder writes entries to its sinks on a background goroutine. Record never blocks and never fails,
// entries are dropped when the buffer is full.
type Recorder struct {
	dropped uint64

	sinks   []Sink
	entries chan Entry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	warnLimiter *rate.Limiter
}

func NewRecorder(bufferSize int, sinks ...Sink) *Recorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	r := &Recorder{
		sinks:       sinks,
		entries:     make(chan Entry, bufferSize),
		done:        make(chan struct{}),
		warnLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	go r.run()
	return r
}

// Record enqueues e. It returns false when the entry was dropped, callers are free to ignore it.
func (r *Recorder) Record(e Entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.entries <- e:
		return true
	default:
		dropped := atomic.AddUint64(&r.dropped, 1)
		r.warn(fmt.Errorf("buffer full, %d entries dropped so far", dropped), &e)
		return false
	}
}

func (r *Recorder) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

// Close stops accepting entries and waits until the buffered ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.entries {
		for _, sink := range r.sinks {
			if err := r.write(sink, &e); err != nil {
				r.warn(err, &e)
			}
		}
	}
}

func (r *Recorder) write(sink Sink, e *Entry) (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			err = fmt.Errorf("audit sink panic: %v", ret)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
	defer cancel()
	return sink.Write(ctx, e)
}

func (r *Recorder) warn(err error, e *Entry) {
	if r.warnLimiter.Allow() {
		logrus.WithError(err).WithFields(logrus.Fields{"path": e.Path, "method": e.Method}).Warn("audit entry not recorded")
	}
}
