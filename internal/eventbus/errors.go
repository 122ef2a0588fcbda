package eventbus

import "errors"

// ErrNoCommandPath is returned by SubscribeCommands when MQTT or the
// commander has not been set.
var ErrNoCommandPath = errors.New("eventbus: command subscription needs mqtt and a commander")
