// Package identity supplies the user every query and mutation is scoped to.
package identity

// Provider returns the current user's id. Session lifecycle lives elsewhere.
type Provider interface {
	CurrentUserID() int64
}

// Static is a fixed user id, configured once at startup.
type Static int64

func (s Static) CurrentUserID() int64 { return int64(s) }
