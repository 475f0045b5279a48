package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deepankarm/docver/internal/config"
	"github.com/deepankarm/docver/internal/logfields"
)

// whitelistEnv builds the environment passed to the external generator. The
// generator decides per version what to emit based on these.
func whitelistEnv(branches, tags []string, latest string) []string {
	return []string{
		"DOCVER_BRANCH_WHITELIST=" + strings.Join(branches, ","),
		"DOCVER_TAG_WHITELIST=" + strings.Join(tags, ","),
		"DOCVER_LATEST=" + latest,
	}
}

// runGenerator invokes the external documentation generator in dir.
func runGenerator(ctx context.Context, cfg config.BuilderConfig, dir string, extraEnv []string) error {
	if cfg.Command == "" {
		return fmt.Errorf("builder command is not configured")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("docs directory %s: %w", dir, err)
	}

	slog.Debug("Running documentation generator",
		slog.String("command", cfg.Command), slog.Any("args", cfg.Args), logfields.Path(dir))

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		slog.Debug("Generator output", slog.String("output", string(output)))
	}
	if err != nil {
		return fmt.Errorf("generator %s failed: %w\noutput: %s", cfg.Command, err, output)
	}
	return nil
}

// copyTree copies the directory tree at src to dst. dst must not exist.
// os.Rename is not used because output and workspace commonly live on
// different filesystems.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !d.Type().IsRegular() {
			return nil // sockets, symlinks etc. are not part of generated docs
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
