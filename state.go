package ledger

import "fmt"

type State int

const (
	Uninitialized State = iota
	Checking
	OpenMode
	GateLocked
	GateUnlocked
)

func (state State) String() string {
	switch state {
	case Uninitialized:
		return "uninitialized"

	case Checking:
		return "checking"

	case OpenMode:
		return "open"

	case GateLocked:
		return "locked"

	case GateUnlocked:
		return "unlocked"

	default:
		return fmt.Sprintf("state(%d)", int(state))
	}
}

// StateObserver is called with the new snapshot after every session transition.
type StateObserver func(Snapshot)

// Snapshot is the complete session state at one instant.
// Snapshots are only built by the constructors below, so a locked gate never holds a token
// and an unlocked gate always does.
type Snapshot struct {
	State State
	Token string
}

func checking() Snapshot {
	return Snapshot{State: Checking}
}

func openMode(token string) Snapshot {
	return Snapshot{State: OpenMode, Token: token}
}

func gateLocked() Snapshot {
	return Snapshot{State: GateLocked}
}

func gateUnlocked(token string) Snapshot {
	if token == "" {
		return gateLocked()
	}

	return Snapshot{State: GateUnlocked, Token: token}
}

// ProtectionEnabled reports whether the server is known to require a password.
func (snap Snapshot) ProtectionEnabled() bool {
	return snap.State == GateLocked || snap.State == GateUnlocked
}

// Loading reports whether the startup status check is still running.
func (snap Snapshot) Loading() bool {
	return snap.State == Uninitialized || snap.State == Checking
}

// Authenticated is true when no credential is needed, or when one is held.
func (snap Snapshot) Authenticated() bool {
	return !snap.ProtectionEnabled() || snap.Token != ""
}

func (snap Snapshot) withToken(token string) Snapshot {
	switch snap.State {
	case GateLocked, GateUnlocked:
		return gateUnlocked(token)

	case OpenMode:
		return openMode(token)

	default:
		return Snapshot{State: snap.State, Token: token}
	}
}

func (snap Snapshot) withoutToken() Snapshot {
	switch snap.State {
	case GateLocked, GateUnlocked:
		return gateLocked()

	case OpenMode:
		return openMode("")

	default:
		return Snapshot{State: snap.State}
	}
}
