package models

import "time"

// InitiatorType classifies who originated a network request.
type InitiatorType string

const (
	InitiatorPage      InitiatorType = "page"
	InitiatorExtension InitiatorType = "extension"
	InitiatorBrowser   InitiatorType = "browser"
	InitiatorUnknown   InitiatorType = "unknown"
)

// IsValid reports whether the value is one of the known initiator types.
func (it InitiatorType) IsValid() bool {
	switch it {
	case InitiatorPage, InitiatorExtension, InitiatorBrowser, InitiatorUnknown:
		return true
	}
	return false
}

// DetectionMethod records which observation channel produced a record.
type DetectionMethod string

const (
	DetectedByDirectObservation DetectionMethod = "directObservation"
	DetectedByRuleMatch         DetectionMethod = "ruleMatch"
)

// NetworkRequestRecord is the canonical attributed request record. Records are
// immutable once created and appended to the persistent store; they are never
// mutated in place.
type NetworkRequestRecord struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	URL           string          `json:"url"`
	Method        string          `json:"method"`
	Domain        string          `json:"domain"`
	ResourceType  string          `json:"resource_type,omitempty"`
	Initiator     string          `json:"initiator,omitempty"`
	InitiatorType InitiatorType   `json:"initiator_type"`
	ExtensionID   string          `json:"extension_id,omitempty"`
	ExtensionName string          `json:"extension_name,omitempty"`
	TabID         int             `json:"tab_id"`
	FrameID       int             `json:"frame_id"`
	DetectedBy    DetectionMethod `json:"detected_by"`
}

// RawRequestEvent is an unclassified request observation from the direct
// capture channel, exactly as the platform reported it.
type RawRequestEvent struct {
	RequestID    string    `json:"request_id,omitempty"`
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	ResourceType string    `json:"resource_type,omitempty"`
	Initiator    string    `json:"initiator,omitempty"`
	TabID        int       `json:"tab_id"`
	FrameID      int       `json:"frame_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// RuleMatchEvent is a match diagnostic reported by the declarative rule
// channel. It carries less detail than a direct observation; the rule id is
// resolved back to an extension by the allocator.
type RuleMatchEvent struct {
	RuleID       int       `json:"rule_id"`
	URL          string    `json:"url"`
	Method       string    `json:"method,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	TabID        int       `json:"tab_id"`
	Timestamp    time.Time `json:"timestamp"`
}
