package tether

import "github.com/zoobzio/capitan"

// Document lifecycle signals.
var (
	// DocumentLoaded is emitted when a Document is constructed from a file.
	DocumentLoaded = capitan.NewSignal(
		"tether.document.loaded",
		"Document loaded from file",
	)

	// DocumentAdopted is emitted when a Document is constructed from an
	// existing in-memory tree.
	DocumentAdopted = capitan.NewSignal(
		"tether.document.adopted",
		"Document adopted from existing tree",
	)

	// DocumentReactArmed is emitted when observation is (re-)established
	// on a document's root.
	DocumentReactArmed = capitan.NewSignal(
		"tether.document.react.armed",
		"Observation armed on document root",
	)

	// DocumentClosed is emitted when a Document's writer is shut down.
	DocumentClosed = capitan.NewSignal(
		"tether.document.closed",
		"Document writer stopped",
	)

	// DocumentStateChanged is emitted when a Document transitions between
	// persistence states.
	DocumentStateChanged = capitan.NewSignal(
		"tether.document.state.changed",
		"Document state transition",
	)
)

// Change and save signals.
var (
	// DocumentChangeDetected is emitted when a mutation is observed on the
	// document tree.
	DocumentChangeDetected = capitan.NewSignal(
		"tether.document.change.detected",
		"Mutation observed on document tree",
	)

	// DocumentSaveScheduled is emitted when a non-blocking save is queued
	// for the writer.
	DocumentSaveScheduled = capitan.NewSignal(
		"tether.document.save.scheduled",
		"Non-blocking save scheduled",
	)

	// DocumentSaveSucceeded is emitted when the tree is durably written.
	DocumentSaveSucceeded = capitan.NewSignal(
		"tether.document.save.succeeded",
		"Document written to storage",
	)

	// DocumentSaveFailed is emitted when encoding or writing fails.
	DocumentSaveFailed = capitan.NewSignal(
		"tether.document.save.failed",
		"Document save failed",
	)

	// DocumentExternalChange is emitted when the bound file is modified by
	// something other than this document.
	DocumentExternalChange = capitan.NewSignal(
		"tether.document.external.change",
		"Bound file modified externally",
	)
)
