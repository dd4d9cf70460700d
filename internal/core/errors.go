package core

import "errors"

// ErrStorage means persisting a message failed; the message is not
// broadcast and the caller decides what happens to the connection.
var ErrStorage = errors.New("storage error")
