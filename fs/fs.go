// Package appfs embeds the assets shipped inside the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*
var FS embed.FS
