package model

import (
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DefaultServerAddress is the placeholder server address stored on every definition.
// The tunnel provider listens locally, so the registry entry never points anywhere else.
const DefaultServerAddress = "127.0.0.1"

// DefaultProviderBundleID identifies the tunnel provider that consumes the payload
const DefaultProviderBundleID = "specht.tunnel.provider"

// NameKey returns the identity key of a tunnel name inside the registry.
// Names that differ only by case share a key.
func NameKey(name string) string {
	// a Caser is stateful and must not be shared between goroutines
	return cases.Fold().String(name)
}

// NameFromPath derives the tunnel name from a config file path (filename without extension)
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TunnelConfigFile is one tunnel configuration discovered in the config directory.
// It is an immutable snapshot for the duration of a reconcile pass.
type TunnelConfigFile struct {
	// Path is the absolute path of the file
	Path string
	// Content is the raw text of the file
	Content []byte
	// Fingerprint is the content hash of Content
	Fingerprint string
	// Name is the filename stem
	Name string
}

// Payload is the provider-specific configuration embedded in a definition
type Payload struct {
	// ConfigPath is the file the definition was created from
	ConfigPath string `json:"config_path"`
	// Config is the raw configuration text
	Config string `json:"config"`
	// Hash is the fingerprint of Config
	Hash string `json:"hash"`
}

// TunnelDefinition is the persisted record of one tunnel
type TunnelDefinition struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Payload          Payload   `json:"payload"`
	ProviderBundleID string    `json:"provider_bundle_id"`
	ServerAddress    string    `json:"server_address"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Key returns the registry identity key of the definition
func (d TunnelDefinition) Key() string {
	return NameKey(d.Name)
}

// ConnectionStatus is the live state of a tunnel session
type ConnectionStatus string

const (
	StatusDisconnected  ConnectionStatus = "disconnected"
	StatusConnecting    ConnectionStatus = "connecting"
	StatusConnected     ConnectionStatus = "connected"
	StatusDisconnecting ConnectionStatus = "disconnecting"
	StatusReasserting   ConnectionStatus = "reasserting"
	StatusInvalid       ConnectionStatus = "invalid"
)

// IsActive reports whether the session occupies the single active slot of the control surface
func (s ConnectionStatus) IsActive() bool {
	switch s {
	case StatusConnecting, StatusConnected, StatusReasserting, StatusDisconnecting:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status
func (s ConnectionStatus) Valid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected,
		StatusDisconnecting, StatusReasserting, StatusInvalid:
		return true
	default:
		return false
	}
}

// TunnelHandle pairs a definition with its last-known connection status
type TunnelHandle struct {
	Definition TunnelDefinition `json:"definition"`
	Status     ConnectionStatus `json:"status"`
}

// Name returns the display name of the tunnel
func (h TunnelHandle) Name() string {
	return h.Definition.Name
}
