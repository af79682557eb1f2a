package anchor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/textanchor/anchor/internal/highlight"
	"github.com/hazyhaar/textanchor/anchor/internal/interact"
	"github.com/hazyhaar/textanchor/anchor/internal/locate"
	"github.com/hazyhaar/textanchor/anchor/internal/registry"
	"github.com/hazyhaar/textanchor/anchor/internal/serialize"
)

// DefaultType is the selection type used when a capture names none.
const DefaultType = "highlight"

// Config holds the engine configuration.
type Config struct {
	// RootNodeID scopes capture and relocation to the element with this id.
	// Empty means the document body.
	RootNodeID string `yaml:"root_node_id"`
	// CustomIDAttribute names a host-supplied stable id attribute, e.g.
	// "data-anchor-id", preferred over id by the anchors layer.
	CustomIDAttribute string `yaml:"custom_id_attribute"`
	ContextWindow     int    `yaml:"context_window"`
	DefaultType       string `yaml:"default_type"`

	NotifyDebounce       time.Duration `yaml:"notify_debounce"`
	HoverDebounce        time.Duration `yaml:"hover_debounce"`
	FingerprintThreshold float64       `yaml:"fingerprint_threshold"`

	DefaultStyle Style            `yaml:"default_style"`
	Styles       map[string]Style `yaml:"styles"`
	// Renderer is "auto", "native" or "wrap".
	Renderer string `yaml:"renderer"`
}

func (c *Config) defaults() {
	if c.ContextWindow <= 0 {
		c.ContextWindow = serialize.DefaultContextWindow
	}
	if c.DefaultType == "" {
		c.DefaultType = DefaultType
	}
	if c.NotifyDebounce <= 0 {
		c.NotifyDebounce = registry.DefaultNotifyWindow
	}
	if c.HoverDebounce <= 0 {
		c.HoverDebounce = interact.DefaultHoverWindow
	}
	if c.FingerprintThreshold <= 0 {
		c.FingerprintThreshold = locate.DefaultThreshold
	}
	if c.DefaultStyle.ClassName == "" {
		c.DefaultStyle = highlight.DefaultStyle
	}
	if c.Renderer == "" {
		c.Renderer = highlight.ModeAuto
	}
}

func (c *Config) validate() error {
	switch c.Renderer {
	case highlight.ModeAuto, highlight.ModeNative, highlight.ModeWrap:
	default:
		return fmt.Errorf("anchor: unknown renderer %q", c.Renderer)
	}
	return nil
}

// ServerConfig configures the anchor daemon.
type ServerConfig struct {
	DBPath string `yaml:"db_path"`
	Listen string `yaml:"listen"`
	// Documents maps document ids to the source loaded at startup: a file
	// path, an http(s) URL, or "rendered+" followed by a URL to load through
	// a headless browser.
	Documents map[string]string `yaml:"documents"`
	// Sanitize strips active content from loaded documents.
	Sanitize bool `yaml:"sanitize"`
	// Watch re-loads file documents when they change on disk and restores
	// their stored selections.
	Watch bool `yaml:"watch"`
	// DocumentRoot is the directory file sources named by API clients are
	// resolved under. Empty refuses client file sources. Sources listed in
	// Documents are not confined.
	DocumentRoot string `yaml:"document_root"`
	// AllowPrivateURLs lets API clients load URLs on private networks.
	AllowPrivateURLs bool `yaml:"allow_private_urls"`
	// DisableAudit turns off the audit_log of mutating operations.
	DisableAudit bool   `yaml:"disable_audit"`
	Engine       Config `yaml:"engine"`
}

func (c *ServerConfig) defaults() {
	if c.DBPath == "" {
		c.DBPath = "anchors.db"
	}
	if c.Listen == "" {
		c.Listen = ":8087"
	}
	c.Engine.defaults()
}

// LoadConfigFile reads a YAML daemon config file.
func LoadConfigFile(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &ServerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("anchor: parse %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}
