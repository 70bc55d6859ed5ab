// Package appfs embeds the files the app ships with: database migrations, email templates,
// public site content and the common passwords list.
package appfs

import "embed"

// "all:" keeps the _base email layouts, which a plain directory pattern skips.
//
//go:embed migrations all:assets
var FS embed.FS
