package web

import "embed"

// Templates holds the storefront page, layout and partial templates.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static holds the CSS served under /static/.
//
//go:embed static/**/*
var Static embed.FS
