package models

// PatternKind identifies a suspicious pattern detector finding.
type PatternKind string

const (
	PatternBulkRequests    PatternKind = "bulk_requests"
	PatternLateNight       PatternKind = "late_night_activity"
	PatternEncodedParams   PatternKind = "encoded_parameters"
	PatternDomainDiversity PatternKind = "domain_diversity"
)

// SuspiciousPattern is a single detector finding over a window of records.
type SuspiciousPattern struct {
	Kind        PatternKind `json:"kind"`
	ExtensionID string      `json:"extension_id"`
	Evidence    string      `json:"evidence"`
	Score       int         `json:"score"`
}

// RiskLevel buckets a risk score into a severity level.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskMinimal  RiskLevel = "minimal"
)

// RiskAssessment is the combined permission + behavior risk for an extension.
// It is derived on demand and not persisted by this core.
type RiskAssessment struct {
	ExtensionID     string              `json:"extension_id"`
	Score           int                 `json:"score"`
	Level           RiskLevel           `json:"level"`
	PermissionScore int                 `json:"permission_score"`
	BehaviorScore   int                 `json:"behavior_score"`
	Findings        []SuspiciousPattern `json:"findings,omitempty"`
}
