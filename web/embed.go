// Package web provides the embedded single-page client.
package web

import "embed"

// FS holds index.html and static/ (app.js, app.css), served by the webui
// package at / and /static/.
//
//go:embed index.html static
var FS embed.FS
