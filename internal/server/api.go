package server

// Wire types of the control API, shared with the ctl client.

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	// State is the engine's state: locked, unlocking, unlocked or
	// refresh-failed.
	State string `json:"state"`
	// Backend is the lock state the backend reports for itself.
	Backend string `json:"backend"`
	// Items is the number of entries currently served.
	Items int `json:"items"`
	// Failed lists item ids the last refresh could not fetch.
	Failed []string `json:"failed,omitempty"`
}

// UnlockRequest is the body of POST /api/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// ErrorResponse is the body of any non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	// Failed carries the unfetched item ids of a partial refresh.
	Failed []string `json:"failed,omitempty"`
}
