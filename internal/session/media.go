package session

// MediaStream is the server-side handle on the candidate's granted
// camera/microphone capture. The controller holds it for the whole of
// InProgress and calls Stop exactly once on every terminal transition,
// including abnormal teardown, so the candidate's camera never stays on
// after the session ends.
type MediaStream interface {
	Stop()
}
