// Package store wires trust.MemoryStore to real ingest sources: a
// directory of PEM/DER certificates and CRLs on disk, an uploaded
// archive of the same, and a verified Master List's admitted CSCA
// candidates. None of this lives in trust itself — trust.Store is a
// pure lookup contract, and nothing in the core reaches out to a
// filesystem or an HTTP body on its own.
package store

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/crl"
	"github.com/icao-pkd/pa-core/masterlist"
	"github.com/icao-pkd/pa-core/trust"
)

// LoadTrustAnchorDir walks dir for .cer/.crt/.pem files, parses each as
// an X.509 certificate, and registers it in ms as a trust anchor. It
// returns the number of certificates loaded. A file that fails to
// parse is skipped, not fatal — an operator seeding a store from a
// directory of CSCA exports should not have one bad export sink the
// whole load.
func LoadTrustAnchorDir(ms *trust.MemoryStore, dir string) (int, error) {
	loaded := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isCertFile(path) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		cert, err := certx.ParsePEMOrDER(raw)
		if err != nil {
			return nil
		}
		ms.AddCertificate(cert, true)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, errors.Wrap(err, "store: walk trust anchor dir")
	}
	return loaded, nil
}

// LoadCRLDir walks dir for .crl files and registers each parsed CRL in
// ms. Returns the number of CRLs loaded.
func LoadCRLDir(ms *trust.MemoryStore, dir string) (int, error) {
	loaded := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".crl") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		parsed, err := crl.Parse(raw)
		if err != nil {
			return nil
		}
		ms.AddCRL(parsed)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, errors.Wrap(err, "store: walk CRL dir")
	}
	return loaded, nil
}

func isCertFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".cer") || strings.HasSuffix(lower, ".crt") || strings.HasSuffix(lower, ".pem")
}

// AdmitMasterListResult summarises applying a verified Master List to
// a store: how many candidates were admitted as non-anchor candidates
// versus rejected, and why.
type AdmitMasterListResult struct {
	Admitted int
	Rejected int
	Reasons  []string
}

// AdmitMasterList applies result's per-entry admission decisions
// (already computed by masterlist.Verify) to ms: Admitted candidates
// become store candidates (not trust anchors — promoting a CSCA to
// anchor status is a distinct, operator-gated step, see
// trust.MemoryStore.MarkTrustAnchor and cmd/pkdctl's "masterlist
// admit" subcommand).
func AdmitMasterList(ms *trust.MemoryStore, result *masterlist.VerifyResult) AdmitMasterListResult {
	var out AdmitMasterListResult
	var admitted []*certx.Certificate
	for _, a := range result.Admissions {
		if a.Status == masterlist.Admitted {
			admitted = append(admitted, a.Certificate)
			out.Admitted++
			continue
		}
		out.Rejected++
		out.Reasons = append(out.Reasons, string(a.Status)+": "+a.Reason)
	}
	ms.AdmitMasterList(admitted)
	return out
}

// ExtractBundle extracts a .zip or .tar.gz archive of certificates/CRLs
// into destDir, to be loaded afterward with LoadTrustAnchorDir/
// LoadCRLDir. Adapted from the teacher's httpapi archive-extraction
// helpers (originally for CryptoPro container uploads); the
// path-traversal guard and directory layout are kept, the
// header.key-seeking step is dropped since a PKD bundle has no
// single marker file to locate.
func ExtractBundle(r io.Reader, filename string, destDir string) error {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(r, destDir)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(r, destDir)
	default:
		return errors.Errorf("store: unsupported bundle format %q (use .zip or .tar.gz)", filename)
	}
}

func extractZip(r io.Reader, destDir string) error {
	tmp, err := os.CreateTemp("", "pkd-bundle-*.zip")
	if err != nil {
		return errors.Wrap(err, "store: create temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return errors.Wrap(err, "store: buffer upload")
	}

	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		return errors.Wrap(err, "store: open zip")
	}

	for _, f := range zr.File {
		cleanPath := filepath.Clean(f.Name)
		if strings.HasPrefix(cleanPath, "..") {
			continue
		}
		destPath := filepath.Join(destDir, cleanPath)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return errors.Wrap(err, "store: create dir")
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return errors.Wrap(err, "store: create parent dir")
		}

		src, err := f.Open()
		if err != nil {
			return errors.Wrap(err, "store: open zip entry")
		}
		dst, err := os.Create(destPath)
		if err != nil {
			src.Close()
			return errors.Wrap(err, "store: create file")
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return errors.Wrap(err, "store: extract file")
		}
	}
	return nil
}

func extractTarGz(r io.Reader, destDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "store: open gzip")
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "store: read tar")
		}

		cleanPath := filepath.Clean(header.Name)
		if strings.HasPrefix(cleanPath, "..") {
			continue
		}
		destPath := filepath.Join(destDir, cleanPath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return errors.Wrap(err, "store: create dir")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return errors.Wrap(err, "store: create parent dir")
			}
			dst, err := os.Create(destPath)
			if err != nil {
				return errors.Wrap(err, "store: create file")
			}
			_, err = io.Copy(dst, tr)
			dst.Close()
			if err != nil {
				return errors.Wrap(err, "store: extract file")
			}
		}
	}
	return nil
}
