package ir

// Version constants for the compiled unit encoding.
const (
	// IRVersion is the filter IR encoding version. Persistent caches reject
	// entries written under a different version.
	IRVersion = "1"

	// CompilerVersion is the wherefn compiler version.
	CompilerVersion = "0.1.0"
)
