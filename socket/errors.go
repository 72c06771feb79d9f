package socket

import "errors"

var (
	errNotJoined         = errors.New("socket has not joined as a user")
	errIncompleteMessage = errors.New("message needs a sender and a recipient")
)
