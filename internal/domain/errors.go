package domain

import "errors"

var (
	ErrEmptyName         = errors.New("username is empty")
	ErrNameTaken         = errors.New("username already in use")
	ErrNotRegistered     = errors.New("session is not registered")
	ErrAlreadyRegistered = errors.New("session already registered")
	ErrRoomExists        = errors.New("room already exists")
	ErrEmptyRoomName     = errors.New("room name is empty")
)

// Machine-readable error kinds carried in error replies to clients.
const (
	KindEmptyName         = "empty_name"
	KindNameTaken         = "name_taken"
	KindNotRegistered     = "not_registered"
	KindAlreadyRegistered = "already_registered"
)

// ErrorKind maps a domain error to its wire kind. Unknown errors map to
// "internal" so clients always get a stable discriminator.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return KindEmptyName
	case errors.Is(err, ErrNameTaken):
		return KindNameTaken
	case errors.Is(err, ErrNotRegistered):
		return KindNotRegistered
	case errors.Is(err, ErrAlreadyRegistered):
		return KindAlreadyRegistered
	default:
		return "internal"
	}
}
