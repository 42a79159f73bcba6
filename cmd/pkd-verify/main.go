// Command pkd-verify runs the demonstration Passive Authentication
// HTTP server: /api/v1/verify, /api/v1/masterlist, /health, and
// swagger docs at /docs. Trust anchors and CRLs are seeded from a
// directory at startup; see cmd/pkdctl for interactive ingest.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/icao-pkd/pa-core/audit"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/httpapi"
	"github.com/icao-pkd/pa-core/store"
	"github.com/icao-pkd/pa-core/trust"
)

func main() {
	var host string
	var port int
	var trustDir string
	var crlDir string
	flag.StringVar(&host, "host", "0.0.0.0", "HTTP server host")
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&trustDir, "trust-dir", "", "directory of CSCA certificates (.cer/.crt/.pem) to seed as trust anchors")
	flag.StringVar(&crlDir, "crl-dir", "", "directory of CRLs (.crl) to seed")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ms := trust.NewMemoryStore()

	if trustDir != "" {
		n, err := store.LoadTrustAnchorDir(ms, trustDir)
		if err != nil {
			slog.Error("failed to load trust anchor dir", "dir", trustDir, "error", err)
			os.Exit(1)
		}
		slog.Info("loaded trust anchors", "dir", trustDir, "count", n)
	}
	if crlDir != "" {
		n, err := store.LoadCRLDir(ms, crlDir)
		if err != nil {
			slog.Error("failed to load CRL dir", "dir", crlDir, "error", err)
			os.Exit(1)
		}
		slog.Info("loaded CRLs", "dir", crlDir, "count", n)
	}

	api := httpapi.NewAPI(ms, audit.NewSlogSink(logger), config.DefaultCoreConfig())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/verify", api.HandleVerify)
	mux.HandleFunc("/api/v1/masterlist", api.HandleMasterList)
	mux.HandleFunc("/health", httpapi.HandleHealth)
	mux.HandleFunc("/docs", httpapi.HandleDocsUI)
	mux.HandleFunc("/docs/swagger.json", httpapi.HandleDocsJSON)

	addr := fmt.Sprintf("%s:%d", host, port)
	slog.Info("starting server", "host", host, "port", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
