package app

import "github.com/nhle/taskflow/internal/keys"

// KeyMap is re-exported from the keys package so callers building the
// root model do not need a second import.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
