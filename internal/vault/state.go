package vault

// State is the lifecycle state of the vault cache. There is one instance
// per process, owned by the Engine; all transitions are serialized.
type State int

const (
	// StateLocked is the initial state: no session, empty cache.
	StateLocked State = iota
	// StateUnlocking means an unlock call against the backend is in
	// flight. Reported separately so the control surface can show
	// progress instead of a misleading terminal state.
	StateUnlocking
	// StateUnlocked means a session is held and the cache is populated.
	StateUnlocked
	// StateRefreshFailed means the vault is still unlocked but the last
	// refresh did not fully succeed, so the cache may be stale or
	// incomplete. Distinct from StateUnlocked so partial staleness is
	// observable instead of hidden.
	StateRefreshFailed
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	case StateRefreshFailed:
		return "refresh-failed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the engine for the control surface.
type Snapshot struct {
	State State
	// Items is the number of records currently served.
	Items int
	// FailedItems lists the item ids the last refresh could not fetch.
	// Empty unless State is StateRefreshFailed.
	FailedItems []string
}
