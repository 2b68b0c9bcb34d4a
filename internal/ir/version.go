package ir

// Version constants for the descriptor schema and generator.
const (
	// SchemaVersion is the descriptor schema version understood by the loader.
	SchemaVersion = "1"

	// GeneratorVersion is stamped into generated statement files.
	GeneratorVersion = "0.1.0"
)
