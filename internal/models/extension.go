package models

// ExtensionInfo describes a single installed browser extension as reported by
// the platform. Instances are owned by the registry; all other components
// treat them as read-only snapshots.
type ExtensionInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Enabled     bool     `json:"enabled"`
	IconURL     string   `json:"icon_url,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	HostAccess  []string `json:"host_access,omitempty"`
}

// AttributionRule maps a platform rule identifier to the extension it matches.
// At most one active rule exists per extension; rule ids are drawn from the
// small pool the platform grants.
type AttributionRule struct {
	RuleID      int    `json:"rule_id"`
	ExtensionID string `json:"extension_id"`
}
