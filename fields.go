package tether

import "github.com/zoobzio/capitan"

// Field keys for Document events.
var (
	// KeyPath is the bound destination path.
	KeyPath = capitan.NewStringKey("path")

	// KeyFormat is the document's format identifier.
	KeyFormat = capitan.NewStringKey("format")

	// KeyState is the current state of the Document.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyBytes is the number of bytes written by a save.
	KeyBytes = capitan.NewIntKey("bytes")

	// KeyStage is the save stage that failed: "encode" or "write".
	KeyStage = capitan.NewStringKey("stage")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")
)
