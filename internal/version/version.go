package version

import (
	"bytes"
	_ "embed"
)

//go:embed version.txt
var versionBytes []byte

// Version returns the version of this code, or "dev" if none was stamped.
func Version() string {
	v := string(bytes.TrimSpace(versionBytes))
	if v == "" {
		return "dev"
	}
	return v
}
