package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/smegmarip/stash-emojify-plugin/internal/detector"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// PluginID is the plugin identifier used to look up settings in Stash
const PluginID = "emojify"

// Default service location used when no detector URL is configured
const (
	DefaultServiceContainer = "face-classifier"
	DefaultServicePort      = "5000"
)

// Default returns the configuration used before any user settings apply
func Default() *PluginConfig {
	return &PluginConfig{
		DetectorBackend:  string(detector.BackendService),
		MaxFaces:         detector.DefaultMaxFaces,
		CooldownSeconds:  10,
		MaxBatchSize:     20,
		EmojifiedTagName: "Emojified",
		NoFacesTagName:   "Emojify No Faces",
	}
}

// Load builds the plugin configuration from Stash plugin settings.
// A nil settings map leaves every default in place.
func Load(settings map[string]interface{}) (*PluginConfig, error) {
	config := Default()

	if settings == nil {
		log.Warnf("No plugin settings found, using defaults")
		settings = map[string]interface{}{}
	}

	// Override defaults with user settings
	if val := getStringSetting(settings, "detectorBackend"); val != "" {
		config.DetectorBackend = strings.ToLower(val)
	}
	if val := getStringSetting(settings, "detectorServiceUrl"); val != "" {
		config.DetectorServiceURL = val
	}
	if val := getStringSetting(settings, "googleCredentialsFile"); val != "" {
		config.GoogleCredentialsFile = val
	}
	if val := getIntSetting(settings, "maxFaces"); val > 0 {
		config.MaxFaces = val
	}
	if val := getStringSetting(settings, "assetsDir"); val != "" {
		config.AssetsDir = val
	}
	if val := getStringSetting(settings, "outputDir"); val != "" {
		config.OutputDir = val
	}
	if val := getStringSetting(settings, "outputFormat"); val != "" {
		config.OutputFormat = strings.ToLower(val)
	}
	if val := getStringSetting(settings, "emojifiedTagName"); val != "" {
		config.EmojifiedTagName = val
	}
	if val := getStringSetting(settings, "noFacesTagName"); val != "" {
		config.NoFacesTagName = val
	}
	// Zero is a valid cooldown, so only a missing or negative value keeps the default
	if val, ok := lookupIntSetting(settings, "cooldownSeconds"); ok && val >= 0 {
		config.CooldownSeconds = val
	}
	if val := getIntSetting(settings, "maxBatchSize"); val > 0 {
		config.MaxBatchSize = val
	}
	config.ScanAfterWrite = getBoolSetting(settings, "scanAfterWrite")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve detector service URL with auto-detection
	if config.DetectorBackend == string(detector.BackendService) {
		config.DetectorServiceURL = resolveServiceURL(config.DetectorServiceURL, DefaultServiceContainer, DefaultServicePort)
		log.Infof("Detector service configured at: %s", config.DetectorServiceURL)
	} else {
		log.Infof("Using %s detector", config.DetectorBackend)
	}

	return config, nil
}

// Validate checks settings that cannot fall back to a default
func (c *PluginConfig) Validate() error {
	switch detector.Backend(c.DetectorBackend) {
	case detector.BackendService, detector.BackendCloudVision:
	default:
		return fmt.Errorf("%w: %s", detector.ErrUnknownBackend, c.DetectorBackend)
	}

	switch c.OutputFormat {
	case "", "jpg", "jpeg", "png":
	default:
		return fmt.Errorf("unsupported output format: %s", c.OutputFormat)
	}

	if strings.EqualFold(c.EmojifiedTagName, c.NoFacesTagName) {
		return fmt.Errorf("emojified and no-faces tags must differ")
	}

	return nil
}

// DetectorConfig returns the detector settings
func (c *PluginConfig) DetectorConfig() detector.Config {
	return detector.Config{
		Backend:         detector.Backend(c.DetectorBackend),
		ServiceURL:      c.DetectorServiceURL,
		CredentialsFile: c.GoogleCredentialsFile,
		MaxFaces:        c.MaxFaces,
		Options:         detector.DefaultOptions(),
	}
}

// getStringSetting retrieves a string setting from plugin config
func getStringSetting(config map[string]interface{}, key string) string {
	if val, ok := config[key]; ok {
		if str, ok := val.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}

// getIntSetting retrieves an integer setting from plugin config
func getIntSetting(config map[string]interface{}, key string) int {
	val, _ := lookupIntSetting(config, key)
	return val
}

// lookupIntSetting reports whether key holds a number, and its value
func lookupIntSetting(config map[string]interface{}, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// getBoolSetting retrieves a boolean setting from plugin config
func getBoolSetting(config map[string]interface{}, key string) bool {
	if val, ok := config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// resolveServiceURL resolves the service URL with proper DNS lookup.
// Handles IP addresses, hostnames, container names, and localhost.
//
// Parameters:
//   - configuredURL: The URL from configuration (may be empty)
//   - defaultContainerName: Default container name for auto-detection
//   - defaultPort: Default port number
//
// Returns: Resolved URL
func resolveServiceURL(configuredURL string, defaultContainerName string, defaultPort string) string {
	const defaultScheme = "http"
	var hardcodedFallback = fmt.Sprintf("%s://%s:%s", defaultScheme, defaultContainerName, defaultPort)

	// If no URL configured, use fallback
	if configuredURL == "" {
		log.Infof("No service URL configured, using default: %s", hardcodedFallback)
		return hardcodedFallback
	}

	// Bare host[:port] values parse as a path; give them a scheme first
	if !strings.Contains(configuredURL, "://") {
		configuredURL = defaultScheme + "://" + configuredURL
	}

	parsedURL, err := url.Parse(configuredURL)
	if err != nil || parsedURL.Hostname() == "" {
		log.Warnf("Failed to parse service URL '%s': %v, using fallback", configuredURL, err)
		return hardcodedFallback
	}

	hostname := parsedURL.Hostname()
	port := parsedURL.Port()
	scheme := parsedURL.Scheme

	if port == "" {
		port = defaultPort
	}

	// Case 1: localhost - use as-is
	if hostname == "localhost" || hostname == "127.0.0.1" {
		resolvedURL := fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
		log.Infof("Using localhost service URL: %s", resolvedURL)
		return resolvedURL
	}

	// Case 2: Already an IP address - use as-is
	if ip := net.ParseIP(hostname); ip != nil {
		resolvedURL := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(hostname, port))
		log.Infof("Using IP-based service URL: %s", resolvedURL)
		return resolvedURL
	}

	// Case 3: Hostname or container name - resolve via DNS
	log.Infof("Resolving hostname via DNS: %s", hostname)
	addrs, err := net.LookupIP(hostname)
	if err != nil || len(addrs) == 0 {
		log.Warnf("DNS lookup failed for '%s': %v, using hostname as-is", hostname, err)
		// The hostname may still resolve later inside the container network
		return fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
	}

	resolvedURL := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(addrs[0].String(), port))
	log.Infof("Resolved '%s' to %s", hostname, resolvedURL)
	return resolvedURL
}
