// Package site post-processes the built documentation tree: the redirect
// page, the version selector injected into every page, and the release notes
// page.
package site

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

var redirectTmpl = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta http-equiv="refresh" content="0; url={{.Target}}">
    <link rel="canonical" href="{{.Target}}">
    <title>Redirecting&hellip;</title>
  </head>
  <body>
    <p>Redirecting to <a href="{{.Target}}">the latest documentation</a>&hellip;</p>
  </body>
</html>
`))

// RedirectTarget returns the relative path the generated index.html points at.
func RedirectTarget(latest string) string {
	return "./" + latest + "/index.html"
}

// WriteRedirect writes <outputDir>/index.html as a meta-refresh redirect to
// the latest version's index page.
func WriteRedirect(outputDir, latest string) error {
	f, err := os.Create(filepath.Join(outputDir, "index.html"))
	if err != nil {
		return fmt.Errorf("create redirect page: %w", err)
	}
	defer f.Close()

	if err := redirectTmpl.Execute(f, struct{ Target string }{Target: RedirectTarget(latest)}); err != nil {
		return fmt.Errorf("render redirect page: %w", err)
	}
	return nil
}
