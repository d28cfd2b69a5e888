package jobs

// WelcomeEmailPayload is enqueued after a successful registration. Keep it
// minimal and ID-based; the worker loads anything else it needs.
type WelcomeEmailPayload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	RequestID string `json:"requestId,omitempty"` // correlation
}
