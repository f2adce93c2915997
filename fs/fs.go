// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql all:assets
var FS embed.FS

const (
	MigrationsDir      = "migrations"
	EmailTemplatesDir  = "assets/templates/email"
	CommonPasswordsGz  = "assets/common-passwords.txt.gz"
	DefaultCatalogFile = "assets/catalog.yaml"
)
