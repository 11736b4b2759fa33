// Package configs embeds the default catalogs, their schemas and the default tuning file so binaries
// and tests run without a config directory on disk.
package configs

import "embed"

//go:embed *.json *.yaml schemas/*.json
var FS embed.FS
