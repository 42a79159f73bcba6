package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/icao-pkd/pa-core/store"
	"github.com/icao-pkd/pa-core/trust"
)

// buildStore seeds a fresh trust.MemoryStore from the --trust-dir/
// --crl-dir/--bundle persistent flags, if set. None is required: a
// verify run against a bare store simply fails chain-building, which
// is a normal (FAILED) Verdict outcome, not a CLI error.
func buildStore() *trust.MemoryStore {
	ms := trust.NewMemoryStore()

	if bundlePath != "" {
		if dir, err := extractBundleToTemp(bundlePath); err != nil {
			slog.Warn("failed to extract bundle", "path", bundlePath, "error", err)
		} else {
			defer os.RemoveAll(dir)
			if n, err := store.LoadTrustAnchorDir(ms, dir); err != nil {
				slog.Warn("failed to load extracted bundle", "path", bundlePath, "error", err)
			} else {
				slog.Info("loaded trust anchors from bundle", "path", bundlePath, "count", n)
			}
		}
	}

	if trustDir != "" {
		n, err := store.LoadTrustAnchorDir(ms, trustDir)
		if err != nil {
			slog.Warn("failed to load trust anchor dir", "dir", trustDir, "error", err)
		} else {
			slog.Info("loaded trust anchors", "dir", trustDir, "count", n)
		}
	}
	if crlDir != "" {
		n, err := store.LoadCRLDir(ms, crlDir)
		if err != nil {
			slog.Warn("failed to load CRL dir", "dir", crlDir, "error", err)
		} else {
			slog.Info("loaded CRLs", "dir", crlDir, "count", n)
		}
	}
	return ms
}

func extractBundleToTemp(bundlePath string) (string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	dir, err := os.MkdirTemp("", "pkdctl-bundle-*")
	if err != nil {
		return "", err
	}
	if err := store.ExtractBundle(f, filepath.Base(bundlePath), dir); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
