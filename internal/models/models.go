package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/patric-chuzhbe/journalapp/internal/user"
)

// UserPayload is the request body accepted by the create and update endpoints.
// Both the original "userName" spelling and "username" are accepted.
type UserPayload struct {
	Username string `json:"userName"`
	Password string `json:"password"`
}

// UnmarshalJSON accepts either "userName" or "username" for the login name.
func (p *UserPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserName  *string `json:"userName"`
		LowerName *string `json:"username"`
		Password  string  `json:"password"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Password = raw.Password
	switch {
	case raw.UserName != nil:
		p.Username = *raw.UserName
	case raw.LowerName != nil:
		p.Username = *raw.LowerName
	default:
		p.Username = ""
	}

	return nil
}

// UserResponse is the public projection of a stored user. The credential is never exposed.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"userName"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UsersResponse []UserResponse

// NewUsersResponse projects stored users to their public form.
func NewUsersResponse(users []*user.User) UsersResponse {
	result := make(UsersResponse, 0, len(users))
	for _, usr := range users {
		result = append(result, UserResponse{
			ID:        usr.ID,
			Username:  usr.Username,
			Roles:     usr.Roles,
			CreatedAt: usr.CreatedAt,
			UpdatedAt: usr.UpdatedAt,
		})
	}
	return result
}

type InternalStatsResponse struct {
	Users int64 `json:"users"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeMongo
	StorageTypeRedis
	StorageTypeSQLite
	StorageTypeFile
	StorageTypeMemory
)

// ErrUsernameTaken is returned by every storage backend when a save would
// give two users the same username.
var ErrUsernameTaken = errors.New("username already taken")
