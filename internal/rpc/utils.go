package rpc

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
	"github.com/smegmarip/stash-emojify-plugin/internal/stash"
)

// NormalizeHost rewrites URLs that Stash reports on its bind address (0.0.0.0)
// so they point at the server the plugin is connected to.
func (s *Service) NormalizeHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		log.Warnf("Failed to parse URL %s: %v", urlStr, err)
		return urlStr
	}

	if u.Hostname() != "0.0.0.0" {
		return urlStr
	}

	base, err := url.Parse(stash.BaseURL(s.serverConnection))
	if err != nil {
		return urlStr
	}

	u.Scheme = base.Scheme
	u.Host = base.Host
	log.Debugf("Normalized %s to %s", urlStr, u.String())
	return u.String()
}

// idArg reads an ID argument; Stash sends integers as float64 in JSON
func idArg(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return strconv.Itoa(v)
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg reads an integer argument, returning 0 when absent or malformed
func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if val, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return val
		}
	}
	return 0
}

// isEmojiOutput reports whether path is a file this plugin wrote
func isEmojiOutput(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), ".emoji.")
}
