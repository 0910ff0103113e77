package models

// User is the acting user of a conversation turn. A nil *User means the
// request is anonymous: only shared entities are visible.
type User struct {
	ID     string `json:"id" db:"id"`
	Locale string `json:"locale,omitempty" db:"locale"`
}

// OwnerID returns the user's id, or nil for an anonymous request.
func (u *User) OwnerID() *string {
	if u == nil || u.ID == "" {
		return nil
	}
	id := u.ID
	return &id
}
