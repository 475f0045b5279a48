package site

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
)

// notesDirName is the output subdirectory holding the release notes page. It
// lives at the site root next to the version directories and is excluded from
// version-selector injection.
const notesDirName = "releases"

// Note is one release entry on the generated release notes page.
type Note struct {
	Tag   string
	Title string
	Body  string // markdown
}

var notesTmpl = template.Must(template.New("notes").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Release notes</title>
  </head>
  <body>
    <h1>Release notes</h1>
{{- range .}}
    <section id="{{.Tag}}">
      <h2>{{.Heading}}</h2>
      {{.HTML}}
    </section>
{{- end}}
  </body>
</html>
`))

type renderedNote struct {
	Tag     string
	Heading string
	HTML    template.HTML
}

// WriteNotes renders the release notes page at
// <outputDir>/releases/index.html from release body markdown.
func WriteNotes(outputDir string, notes []Note) error {
	md := goldmark.New()

	rendered := make([]renderedNote, 0, len(notes))
	for _, n := range notes {
		var buf bytes.Buffer
		if err := md.Convert([]byte(n.Body), &buf); err != nil {
			return fmt.Errorf("render notes for %s: %w", n.Tag, err)
		}
		heading := n.Title
		if heading == "" {
			heading = n.Tag
		}
		rendered = append(rendered, renderedNote{
			Tag:     n.Tag,
			Heading: heading,
			HTML:    template.HTML(buf.String()), //nolint:gosec // goldmark output of our own release bodies
		})
	}

	dir := filepath.Join(outputDir, notesDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create releases directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "index.html"))
	if err != nil {
		return fmt.Errorf("create release notes page: %w", err)
	}
	defer f.Close()

	if err := notesTmpl.Execute(f, rendered); err != nil {
		return fmt.Errorf("render release notes page: %w", err)
	}
	return nil
}
