// Package web embeds the HTML templates and the static frontend.
package web

import "embed"

// TemplatesFS contains the server-rendered page templates.
//
//go:embed all:templates
var TemplatesFS embed.FS

// StaticFS contains the frontend served under /frontend.
//
//go:embed all:static
var StaticFS embed.FS
