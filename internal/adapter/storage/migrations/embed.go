package migrations

import "embed"

// FS holds the schema for every supported driver, one directory per driver.
//
//go:embed mysql/*.sql sqlite/*.sql
var FS embed.FS
