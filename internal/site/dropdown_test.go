package site

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionTarget(t *testing.T) {
	tests := []struct {
		versionInDir    string
		latestVersion   string
		dropdownVersion string
		htmlPath        string
		want            string
	}{
		// page's own version, not latest
		{"master", "v1.2.3", "master", "/tmp/abc/master/index.html", "master/index.html"},
		{"master", "v1.2.3", "master", "/tmp/abc/master/fundamentals/document/index.html", "master/fundamentals/document/index.html"},
		{"v1.2.3", "v1.2.4", "v1.2.3", "/tmp/abc/v1.2.3/index.html", "v1.2.3/index.html"},
		{"v1.2.3", "v1.2.4", "v1.2.3", "/tmp/abc/v1.2.3/fundamentals/document/index.html", "v1.2.3/fundamentals/document/index.html"},
		// page's own version, latest (lives at root)
		{"v1.2.3", "v1.2.3", "v1.2.3", "/tmp/abc/index.html", "index.html"},
		{"v1.2.3", "v1.2.3", "v1.2.3", "/tmp/abc/fundamentals/document/index.html", "fundamentals/document/index.html"},
		// latest page linking to other versions
		{"v1.2.3", "v1.2.3", "master", "/tmp/abc/index.html", "master/index.html"},
		{"v1.2.3", "v1.2.3", "master", "/tmp/abc/fundamentals/document/index.html", "../../master/fundamentals/document/index.html"},
		{"v1.2.3", "v1.2.3", "v1.2.4", "/tmp/abc/index.html", "v1.2.4/index.html"},
		{"v1.2.3", "v1.2.3", "v1.2.4", "/tmp/abc/fundamentals/document/index.html", "../../v1.2.4/fundamentals/document/index.html"},
		// old version page linking to another non-latest version
		{"v1.2.3", "v1.2.4", "master", "/tmp/abc/v1.2.3/index.html", "../master/index.html"},
		{"v1.2.3", "v1.2.4", "master", "/tmp/abc/v1.2.3/fundamentals/document/index.html", "../../../master/fundamentals/document/index.html"},
		// old version page linking to latest (at root)
		{"v1.2.3", "v1.2.4", "v1.2.4", "/tmp/abc/v1.2.3/index.html", "../index.html"},
		{"v1.2.3", "v1.2.4", "v1.2.4", "/tmp/abc/v1.2.3/fundamentals/document/index.html", "../../../fundamentals/document/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.versionInDir+"_"+tt.dropdownVersion+"_"+filepath.Base(filepath.Dir(tt.htmlPath)), func(t *testing.T) {
			got, err := OptionTarget("/tmp/abc", tt.htmlPath, tt.dropdownVersion, tt.versionInDir, tt.latestVersion)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionLabel(t *testing.T) {
	assert.Equal(t, "latest(v1.2.3)", OptionLabel("v1.2.3", "v1.2.3"))
	assert.Equal(t, "v1.2.3", OptionLabel("v1.2.3", "v1.2.4"))
}

func TestUpdateDropdowns_InjectsSelector(t *testing.T) {
	docsDir := t.TempDir()

	// Latest version's page at the root, an old version under v1.2.3/.
	page := filepath.Join(docsDir, "index.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body><div class="sd-text-center"></div><p>docs</p></body></html>`), 0o644))

	oldDir := filepath.Join(docsDir, "v1.2.3")
	require.NoError(t, os.MkdirAll(oldDir, 0o750))
	oldPage := filepath.Join(oldDir, "index.html")
	require.NoError(t, os.WriteFile(oldPage, []byte(`<html><body><p>old docs</p></body></html>`), 0o644))

	versions := []string{"master", "v1.2.4", "v1.2.3"}

	require.NoError(t, UpdateDropdowns(docsDir, "v1.2.4", "v1.2.4", versions))
	require.NoError(t, UpdateDropdowns(docsDir, "v1.2.3", "v1.2.4", versions))

	rootHTML, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(rootHTML), `class="version-select"`)
	assert.Contains(t, string(rootHTML), `latest(v1.2.4)`)
	assert.Contains(t, string(rootHTML), `value="master/index.html"`)
	// The page's own version is selected.
	assert.Contains(t, string(rootHTML), `selected="selected"`)

	oldHTML, err := os.ReadFile(oldPage)
	require.NoError(t, err)
	assert.Contains(t, string(oldHTML), `value="../index.html"`, "old page links up to latest at root")
	assert.Contains(t, string(oldHTML), `value="../master/index.html"`)
}

func TestUpdateDropdowns_ReplacesExistingOptions(t *testing.T) {
	docsDir := t.TempDir()
	page := filepath.Join(docsDir, "index.html")
	content := `<html><body><select class="version-select"><option value="gone">gone</option></select></body></html>`
	require.NoError(t, os.WriteFile(page, []byte(content), 0o644))

	require.NoError(t, UpdateDropdowns(docsDir, "v2.0.0", "v2.0.0", []string{"v2.0.0", "v1.0.0"}))

	got, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "gone")
	assert.Contains(t, string(got), "latest(v2.0.0)")
	// Still exactly one selector.
	assert.Equal(t, 1, strings.Count(string(got), "<select"))
}

func TestUpdateDropdowns_SkipsReleaseNotesPage(t *testing.T) {
	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "index.html"), []byte(`<html><body></body></html>`), 0o644))

	require.NoError(t, WriteNotes(docsDir, []Note{{Tag: "v2.0.0", Body: "## Fixes\n"}}))
	notesPage := filepath.Join(docsDir, "releases", "index.html")
	before, err := os.ReadFile(notesPage)
	require.NoError(t, err)

	require.NoError(t, UpdateDropdowns(docsDir, "v2.0.0", "v2.0.0", []string{"master", "v2.0.0"}))

	after, err := os.ReadFile(notesPage)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "notes page must not get a version selector")
	assert.NotContains(t, string(after), "version-select")

	// The actual docs page still gets one.
	rootHTML, err := os.ReadFile(filepath.Join(docsDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(rootHTML), "version-select")
}

func TestUpdateDropdowns_SkipsOtherVersionDirsAtRoot(t *testing.T) {
	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "index.html"), []byte(`<html><body></body></html>`), 0o644))

	otherDir := filepath.Join(docsDir, "master")
	require.NoError(t, os.MkdirAll(otherDir, 0o750))
	otherPage := filepath.Join(otherDir, "index.html")
	original := `<html><body><p>untouched</p></body></html>`
	require.NoError(t, os.WriteFile(otherPage, []byte(original), 0o644))

	require.NoError(t, UpdateDropdowns(docsDir, "v1.0.0", "v1.0.0", []string{"master", "v1.0.0"}))

	got, err := os.ReadFile(otherPage)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "version-select", "other version's pages must not be touched by the latest pass")
}
