package models

// ExtensionRequestEvent is emitted once per attributed extension record for
// downstream consumers (alerting, dashboards).
type ExtensionRequestEvent struct {
	ExtensionID   string        `json:"extension_id"`
	ExtensionName string        `json:"extension_name"`
	URL           string        `json:"url"`
	Method        string        `json:"method"`
	ResourceType  string        `json:"resource_type,omitempty"`
	InitiatorType InitiatorType `json:"initiator_type"`
}

// AlertEvent is a cooldown-gated alert notification.
type AlertEvent struct {
	Kind            string          `json:"kind"`
	ExtensionID     string          `json:"extension_id,omitempty"`
	ExtensionName   string          `json:"extension_name,omitempty"`
	Domain          string          `json:"domain,omitempty"`
	DetectionMethod DetectionMethod `json:"detection_method,omitempty"`
	Message         string          `json:"message"`
}
