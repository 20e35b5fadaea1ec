package clone

import "github.com/sasha-s/go-deadlock"

// mutex guards the Junk Tracker's mutable state. A deadlock-checked lock is
// used — rather than a plain sync.RWMutex — because this state is touched
// from two execution contexts that must never recursively contend on it:
// the orchestrator's normal control flow and the asynchronous signal
// handler's cleanup path. A self-deadlock here would hang a one-shot CLI
// invocation with nothing to restart it.
type mutex = deadlock.Mutex
