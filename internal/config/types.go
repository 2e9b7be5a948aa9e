package config

// PluginConfig holds plugin settings from Stash
type PluginConfig struct {
	DetectorBackend       string
	DetectorServiceURL    string
	GoogleCredentialsFile string
	MaxFaces              int
	AssetsDir             string
	OutputDir             string
	OutputFormat          string
	EmojifiedTagName      string
	NoFacesTagName        string
	CooldownSeconds       int
	MaxBatchSize          int
	ScanAfterWrite        bool
}
