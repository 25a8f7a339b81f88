// Package resources serves the browser assets: the cytoscape adapter
// script and the stylesheet.
package resources

// StaticDirectoryPath is the asset directory relative to the module root.
const StaticDirectoryPath = "internal/ui/resources/static"

// Asset paths referenced by the page.
const (
	AppScript     = "app.js"
	AppStylesheet = "app.css"
)

// StaticPath returns the URL path for a static asset.
func StaticPath(path string) string {
	return "/static/" + path
}
