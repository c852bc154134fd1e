package tether

import "os"

// SaveRequest carries one serialized snapshot through the save pipeline.
// Middleware installed via the WithSave* options observes or wraps the
// write of this request; the terminal stage performs the actual
// directory creation and file write.
type SaveRequest struct {
	// Path is the destination file.
	Path string

	// Format is the document's format identifier.
	Format string

	// Data is the full serialized document, ready to write. Saves always
	// replace the entire file; there are no partial writes.
	Data []byte

	// Mode is the permission mode for a newly created file.
	Mode os.FileMode
}
