// Package appfs embeds the files the binaries need at runtime: SQL migrations & email templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*
var FS embed.FS
