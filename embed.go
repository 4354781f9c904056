package designassistant

import "embed"

// TemplateFS contains the HTML templates of the web interface, split into layout, pages and partials.
// Partials are also rendered on their own and pushed to the browser over SSE.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the script and stylesheet of the web interface.
//
//go:embed static/*
var StaticFS embed.FS
