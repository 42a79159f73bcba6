// Package httpapi provides the demonstration HTTP handlers for the PKD
// Passive Authentication core: verifying an EF.SOD against Data
// Groups, and ingesting Master Lists into an in-process trust store.
//
// @title PKD Passive Authentication API
// @version 1.0
// @description HTTP API for ICAO Doc 9303 Passive Authentication: verifying an
// @description EF.SOD against presented Data Groups, and admitting CSCA
// @description candidates from a Master List into an in-process trust store.
// @description
// @description Supports:
// @description - RFC 5652 CMS SignedData parsing and signature verification
// @description - Data Group hash verification (SHA-256/SHA-384/SHA-512, SHA-1 flagged weak)
// @description - Trust-chain building and CRL-based revocation checking
// @description - Deviation List classification
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /
// @schemes http https
//
// @tag.name Health
// @tag.description Health check endpoints
//
// @tag.name Verification
// @tag.description Passive Authentication verification
//
// @tag.name Master List
// @tag.description Master List ingest
package httpapi
