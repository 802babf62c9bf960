// Package web holds the dashboard templates and the CSS and JS they load.
package web

import "embed"

// TemplatesFS holds the page and the partials swapped in by htmx.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/app.css static/app.js
var StaticFS embed.FS
