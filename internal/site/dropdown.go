package site

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// OptionTarget computes the href a version selector option navigates to, as a
// path relative to the page it is embedded in.
//
// The latest version's pages live at the site root; every other version lives
// under "<version>/". versionInDir is the version the page belongs to,
// dropdownVersion the option being generated.
func OptionTarget(docsDir, htmlPath, dropdownVersion, versionInDir, latestVersion string) (string, error) {
	rel, err := filepath.Rel(docsDir, htmlPath)
	if err != nil {
		return "", fmt.Errorf("page %s not under %s: %w", htmlPath, docsDir, err)
	}
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")

	if versionInDir == dropdownVersion {
		// Link to the page itself.
		if parts[0] == latestVersion {
			return path.Join(parts[1:]...), nil
		}
		return rel, nil
	}

	// Cross-version link: climb out of the page's directory, then descend into
	// the target version (empty for the latest, which is at the root).
	relPath := rel
	if versionInDir != latestVersion {
		relPath = path.Join(parts[1:]...)
	}
	relVersion := dropdownVersion
	if dropdownVersion == latestVersion {
		relVersion = ""
	}

	up := strings.Repeat("../", len(parts)-1)
	target := up + relVersion + "/" + relPath
	return strings.ReplaceAll(target, "//", "/"), nil
}

// OptionLabel returns the display text for a selector option. The latest
// version is labelled "latest(<tag>)".
func OptionLabel(dropdownVersion, latestVersion string) string {
	if dropdownVersion == latestVersion {
		return fmt.Sprintf("latest(%s)", dropdownVersion)
	}
	return dropdownVersion
}

// UpdateDropdowns rewrites the version selector in every HTML page belonging
// to versionInDir. For the latest version that means the pages at the site
// root, excluding other versions' subdirectories.
func UpdateDropdowns(docsDir, versionInDir, latestVersion string, dropdownVersions []string) error {
	pages, err := collectPages(docsDir, versionInDir, latestVersion)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if err := updatePageDropdown(docsDir, page, versionInDir, latestVersion, dropdownVersions); err != nil {
			return fmt.Errorf("update dropdown in %s: %w", page, err)
		}
	}
	return nil
}

// collectPages lists the HTML files that belong to a version.
func collectPages(docsDir, versionInDir, latestVersion string) ([]string, error) {
	root := docsDir
	if versionInDir != latestVersion {
		root = filepath.Join(docsDir, versionInDir)
	}

	var pages []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// At the site root, skip subtrees that hold other versions and the
			// generated release-notes page, which is not a version page.
			if versionInDir == latestVersion && filepath.Dir(p) == docsDir &&
				(isVersionDirName(d.Name()) || d.Name() == notesDirName) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".html") {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return pages, nil
}

// isVersionDirName mirrors the directory naming used for version output.
func isVersionDirName(name string) bool {
	return name == "master" || name == "main" || strings.HasPrefix(name, "v")
}

func updatePageDropdown(docsDir, htmlPath, versionInDir, latestVersion string, dropdownVersions []string) error {
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	sel := findDropdown(doc)
	if sel == nil {
		sel = newDropdownNode()
		attachDropdown(doc, sel)
	}

	// Replace all options.
	for c := sel.FirstChild; c != nil; {
		next := c.NextSibling
		sel.RemoveChild(c)
		c = next
	}
	for _, v := range dropdownVersions {
		target, err := OptionTarget(docsDir, htmlPath, v, versionInDir, latestVersion)
		if err != nil {
			return err
		}
		opt := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Option,
			Data:     "option",
			Attr:     []html.Attribute{{Key: "value", Val: target}},
		}
		if v == versionInDir {
			opt.Attr = append(opt.Attr, html.Attribute{Key: "selected", Val: "selected"})
		}
		opt.AppendChild(&html.Node{Type: html.TextNode, Data: OptionLabel(v, latestVersion)})
		sel.AppendChild(opt)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return err
	}
	return os.WriteFile(htmlPath, buf.Bytes(), 0o644)
}

// findDropdown locates an existing version selector: a <select> carrying the
// version-select class, or the legacy id "version".
func findDropdown(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Select {
		for _, a := range n.Attr {
			if (a.Key == "class" && strings.Contains(a.Val, "version-select")) ||
				(a.Key == "id" && a.Val == "version") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findDropdown(c); found != nil {
			return found
		}
	}
	return nil
}

func newDropdownNode() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Select,
		Data:     "select",
		Attr: []html.Attribute{
			{Key: "onchange", Val: "window.location.href=this.value"},
			{Key: "class", Val: "version-select"},
		},
	}
}

// attachDropdown places a freshly created selector into the sidebar container
// when the theme provides one, otherwise at the top of <body>.
func attachDropdown(doc *html.Node, sel *html.Node) {
	if div := findByClass(doc, atom.Div, "sd-text-center"); div != nil {
		div.AppendChild(sel)
		return
	}
	if body := findElement(doc, atom.Body); body != nil {
		if body.FirstChild != nil {
			body.InsertBefore(sel, body.FirstChild)
		} else {
			body.AppendChild(sel)
		}
	}
}

func findByClass(n *html.Node, a atom.Atom, class string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, class) {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, a, class); found != nil {
			return found
		}
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
