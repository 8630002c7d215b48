// Package web holds the page templates and static assets compiled into the
// server binary.
package web

import "embed"

// Templates contains templates/*.html. base.html is the layout; every other
// file defines "content" for one page.
//
//go:embed templates/*.html
var Templates embed.FS

// Static is served under /static/.
//
//go:embed static
var Static embed.FS
