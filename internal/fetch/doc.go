// Package fetch downloads job inputs over HTTP.
//
// Plain URLs are fetched once. Google Drive share links are resolved to a
// file id and tried against the direct-download endpoints in turn, following
// the virus-scan interstitial when Drive serves one. Every download streams
// to a temporary file under a size limit, is rejected if it turns out to be
// an HTML page, and is renamed into place only once verified.
package fetch
