package gate

// DefaultSessionKey namespaces the once-per-session completion flag.
const DefaultSessionKey = "loadgate.session.completed"

// SessionStore is the small key/value store holding the session flag.
// Implementations decide what a session is (process, shell, browser tab).
type SessionStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
