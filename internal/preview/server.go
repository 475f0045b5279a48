// Package preview serves the built documentation tree locally.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/deepankarm/docver/internal/logfields"
)

// Handler returns the http.Handler serving the output directory.
func Handler(outputDir string) http.Handler {
	return http.FileServer(http.Dir(outputDir))
}

// Serve serves outputDir on the given port until the context is canceled.
func Serve(ctx context.Context, outputDir string, port int) error {
	if st, err := os.Stat(outputDir); err != nil || !st.IsDir() {
		return fmt.Errorf("output directory not found: %s", outputDir)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Handler(outputDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Preview server listening",
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)), logfields.Path(outputDir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown preview server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("preview server failed: %w", err)
		}
		return nil
	}
}
