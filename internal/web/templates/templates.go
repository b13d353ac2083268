package templates

import "embed"

// FS holds the layout, page and partial templates.
//
//go:embed *.html pages/*.html partials/*.html
var FS embed.FS
