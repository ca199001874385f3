package service

// Broadcaster pushes session events to connected clients (avoids import cycle with ws)
type Broadcaster interface {
	Publish(sessionID string, msgType string, payload interface{})
}

// Event types published for a session
const (
	EventSessionUpdated  = "session_updated"
	EventAttemptsAdded   = "attempts_appended"
	EventReviewSubmitted = "review_submitted"
	EventRevealed        = "revealed"
	EventSaved           = "saved"
)
