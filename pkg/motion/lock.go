package motion

import "sync"

// Activity names the motion-producing activity that owns the link.
type Activity int

const (
	ActivityNone Activity = iota
	ActivityManual
	ActivitySequence
	ActivityProgram
	ActivityAuto
)

func (a Activity) String() string {
	switch a {
	case ActivityNone:
		return "none"
	case ActivityManual:
		return "manual"
	case ActivitySequence:
		return "sequence"
	case ActivityProgram:
		return "program"
	case ActivityAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// Lock admits at most one activity at a time. A second request is
// rejected, never queued.
type Lock struct {
	mu     sync.Mutex
	holder Activity
}

// TryAcquire takes the lock for a and reports whether it succeeded.
func (l *Lock) TryAcquire(a Activity) bool {
	if a == ActivityNone {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != ActivityNone {
		return false
	}
	l.holder = a
	return true
}

// Release frees the lock if a holds it.
func (l *Lock) Release(a Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == a {
		l.holder = ActivityNone
	}
}

// Holder returns the current holder, ActivityNone when free.
func (l *Lock) Holder() Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
