// Package user defines the user model shared by the storage backends,
// the service layer and both transports.
package user

import "time"

// RoleUser is granted to every account created through the public surface.
const RoleUser = "USER"

// User represents a journal account.
type User struct {
	// ID is the storage identifier of the user, meaning a UUID.
	ID string `json:"id" bson:"_id"`

	// Username uniquely identifies the user for lookups, updates and deletion.
	Username string `json:"userName" bson:"username"`

	// Password is the stored credential. Once persisted it is always a hash.
	Password string `json:"password" bson:"password"`

	Roles     []string  `json:"roles" bson:"roles"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Clone returns a deep copy so callers never share a stored record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]string(nil), u.Roles...)
	return &clone
}
