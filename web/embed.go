// Package web embeds the page templates and static assets served by the planner.
package web

import "embed"

// Templates holds layout.html, the pages and templates/partials.
//
//go:embed templates/*.html templates/partials/*.html
var Templates embed.FS

//go:embed static/css/*.css static/js/*.js
var Static embed.FS
