// Package filelock provides an advisory lock between processes built on the
// atomic exclusive creation of a marker file. The filesystem is the only
// synchronization point: cooperating processes that agree on the marker path
// exclude each other; anything else is not stopped.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/downfa11-org/revread/pkg/metrics"
	"github.com/downfa11-org/revread/util"
	"github.com/google/uuid"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

var (
	ErrLockTimeout = errors.New("lock timeout")
	// ErrMarkerChanged is returned by Release when the marker no longer
	// carries this lock's owner token. The marker is left in place.
	ErrMarkerChanged = errors.New("lock marker owned by someone else")
)

type State int

const (
	Unlocked State = iota
	Acquiring
	Held
	Released
	Failed
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Acquiring:
		return "acquiring"
	case Held:
		return "held"
	case Released:
		return "released"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Owner is the payload written into the marker.
type Owner struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	ID         string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// TimeoutError reports a marker that stayed in place past the deadline.
// Holder is nil when the marker could not be read or parsed.
type TimeoutError struct {
	Path        string
	Timeout     time.Duration
	Holder      *Owner
	HolderAlive bool
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for lock %s", e.Timeout, e.Path)
	if e.Holder == nil {
		return msg
	}
	status := "not running"
	if e.HolderAlive {
		status = "running"
	}
	return fmt.Sprintf("%s (held by pid %d on %s since %s, %s)",
		msg, e.Holder.PID, e.Holder.Host, e.Holder.AcquiredAt.Format(time.RFC3339), status)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrLockTimeout }

// StateError is returned for calls that the lock's current state forbids,
// such as releasing a lock that is not held.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("filelock: cannot %s a lock in state %s", e.Op, e.State)
}

type Option func(*Lock)

func WithTimeout(d time.Duration) Option {
	return func(l *Lock) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(l *Lock) {
		if d > 0 {
			l.poll = d
		}
	}
}

// Lock is a handle on one marker path. A Lock is used for a single
// acquire/release cycle and is not re-entrant.
type Lock struct {
	mu       sync.Mutex
	path     string
	timeout  time.Duration
	poll     time.Duration
	state    State
	owner    Owner
	deadline time.Time
}

func New(path string, opts ...Option) *Lock {
	l := &Lock{
		path:    path,
		timeout: DefaultTimeout,
		poll:    DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire creates a new Lock for path and acquires it.
func Acquire(path string, timeout, poll time.Duration) (*Lock, error) {
	l := New(path, WithTimeout(timeout), WithPollInterval(poll))
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lock) Path() string { return l.path }

// Deadline is the time the current or last acquisition gives up.
func (l *Lock) Deadline() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deadline
}

func (l *Lock) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Owner returns the payload written into the marker. It is zero until the
// lock has been acquired.
func (l *Lock) Owner() Owner {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Acquire blocks until the marker is created or the timeout elapses. It
// polls rather than waiting on the filesystem and gives no fairness between
// competing processes.
func (l *Lock) Acquire() error {
	l.mu.Lock()
	if l.state != Unlocked {
		defer l.mu.Unlock()
		return &StateError{Op: "acquire", State: l.state}
	}
	l.state = Acquiring
	begin := time.Now()
	deadline := begin.Add(l.timeout)
	l.deadline = deadline
	l.mu.Unlock()

	host, _ := os.Hostname()
	payload := Owner{PID: os.Getpid(), Host: host, ID: uuid.NewString()}

	for {
		payload.AcquiredAt = time.Now().UTC()
		err := createMarker(l.path, payload)
		if err == nil {
			l.settle(Held, payload)
			metrics.LockAcquisitions.WithLabelValues("acquired").Inc()
			metrics.LockWait.Observe(time.Since(begin).Seconds())
			metrics.LocksHeld.Inc()
			util.Debug("[LOCK] acquired %s as %s after %s", l.path, payload.ID, time.Since(begin))
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			l.settle(Failed, Owner{})
			metrics.LockAcquisitions.WithLabelValues("error").Inc()
			return fmt.Errorf("create lock marker %s: %w", l.path, err)
		}

		if !time.Now().Before(deadline) {
			l.settle(Failed, Owner{})
			metrics.LockAcquisitions.WithLabelValues("timeout").Inc()
			metrics.LockWait.Observe(time.Since(begin).Seconds())
			terr := &TimeoutError{Path: l.path, Timeout: l.timeout}
			if holder, err := ReadOwner(l.path); err == nil {
				terr.Holder = holder
				terr.HolderAlive = holder.Host == host && processAlive(holder.PID)
			}
			util.Warn("[LOCK] %v", terr)
			return terr
		}
		time.Sleep(min(l.poll, time.Until(deadline)))
	}
}

func (l *Lock) settle(state State, owner Owner) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	l.owner = owner
}

// Release removes the marker. Releasing a lock that is not held is an error.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Held {
		return &StateError{Op: "release", State: l.state}
	}
	l.state = Released
	metrics.LocksHeld.Dec()

	current, err := ReadOwner(l.path)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	if current.ID != l.owner.ID {
		return fmt.Errorf("release lock %s: %w (owner %s, pid %d)", l.path, ErrMarkerChanged, current.ID, current.PID)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	util.Debug("[LOCK] released %s", l.path)
	return nil
}

// Do runs fn while holding the lock.
func (l *Lock) Do(fn func() error) (err error) {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn()
}

// ReadOwner parses the payload of the marker at path.
func ReadOwner(path string) (*Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var o Owner
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse lock marker %s: %w", path, err)
	}
	return &o, nil
}

// createMarker fails with os.ErrExist when the marker is already there.
func createMarker(path string, o Owner) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
