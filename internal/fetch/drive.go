package fetch

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var driveIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`file/d/([a-zA-Z0-9_-]+)`),
}

var (
	confirmHrefPattern  = regexp.MustCompile(`href="(/uc\?export=download[^"]*)"`)
	downloadFormPattern = regexp.MustCompile(`(?s)<form[^>]*id="download-form"[^>]*action="([^"]+)"[^>]*>(.*?)</form>`)
	hiddenInputPattern  = regexp.MustCompile(`<input[^>]*type="hidden"[^>]*name="([^"]+)"[^>]*value="([^"]*)"`)
)

// IsDriveURL reports whether rawURL points at Google Drive.
func IsDriveURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "drive.google.com" || host == "docs.google.com"
}

func (f *HTTPFetcher) isDrive(rawURL string) bool {
	if IsDriveURL(rawURL) {
		return true
	}
	host := hostOf(rawURL)
	return host == hostOf(f.driveBase) || host == hostOf(f.docsBase)
}

// DriveFileID extracts the file id from a Drive share or download link.
func DriveFileID(rawURL string) string {
	for _, pattern := range driveIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// confirmURL finds the "download anyway" target on a Drive virus-scan
// warning page. Both the legacy link and the newer form layout are handled.
// Returns "" when the page is not an interstitial.
func confirmURL(page []byte, driveBase string) string {
	text := string(page)
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "virus scan warning") && !strings.Contains(text, "download_warning") && !strings.Contains(text, "download-form") {
		return ""
	}
	if m := confirmHrefPattern.FindStringSubmatch(text); m != nil {
		return driveBase + html.UnescapeString(m[1])
	}
	if m := downloadFormPattern.FindStringSubmatch(text); m != nil {
		action := html.UnescapeString(m[1])
		values := url.Values{}
		for _, input := range hiddenInputPattern.FindAllStringSubmatch(m[2], -1) {
			values.Set(html.UnescapeString(input[1]), html.UnescapeString(input[2]))
		}
		if len(values) == 0 {
			return action
		}
		sep := "?"
		if strings.Contains(action, "?") {
			sep = "&"
		}
		return action + sep + values.Encode()
	}
	return ""
}
