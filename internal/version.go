package internal

import "fmt"

var (
	// Overridden with -ldflags -X at build time.
	Version         = "devel"
	GitRevision     = "devel"
	VersionRevision = fmt.Sprintf("%s-%s", Version, GitRevision)
)
