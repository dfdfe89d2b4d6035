package chathub

import "errors"

// Expected, recoverable conditions. Each is surfaced to the initiating user
// as a templated notice; see MessageKey.
var (
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrNoSession         = errors.New("no direct session with target")
	ErrNotInDirect       = errors.New("not in a direct conversation")
	ErrNoReplyTarget     = errors.New("no reply target")
	ErrTargetUnreachable = errors.New("target is unreachable")
	ErrPermission        = errors.New("permission denied")
	ErrNotInGroup        = errors.New("not in a group")
	ErrAlreadyInGroup    = errors.New("already in a group")
	ErrGroupNotFound     = errors.New("group not found")

	// ErrNameTaken is returned by Register when another connected user has the same display name.
	ErrNameTaken = errors.New("display name is already in use")

	// ErrGroupNameExhausted is returned when no unused group name could be generated.
	ErrGroupNameExhausted = errors.New("could not generate an unused group name")
)

// MessageKey maps an error to the notice template shown to the user.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrSelfTarget):
		return "self-whisper-error"
	case errors.Is(err, ErrNoSession):
		return "invalid-dm-target"
	case errors.Is(err, ErrNotInDirect):
		return "not-in-dm"
	case errors.Is(err, ErrNoReplyTarget):
		return "no-reply-target"
	case errors.Is(err, ErrTargetUnreachable):
		return "target-offline"
	case errors.Is(err, ErrPermission):
		return "cannot-delete-group"
	case errors.Is(err, ErrNotInGroup):
		return "not-in-group"
	case errors.Is(err, ErrAlreadyInGroup):
		return "cannot-join-group"
	case errors.Is(err, ErrGroupNotFound):
		return "cannot-join-group"
	case errors.Is(err, ErrGroupNameExhausted):
		return "cannot-create-group"
	default:
		return "unknown-command"
	}
}
