package record

// Route pins a chat group or email thread to the event it was categorized into.
// Key is the group id (or name) for chat and the thread id (or subject) for email.
type Route struct {
	Source  Source `json:"source"`
	Key     string `json:"key"`
	EventID string `json:"event_id"`
}
