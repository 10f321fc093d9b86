package risk

import (
	"strings"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
)

// Per-category caps keep any single signal class from forcing "critical"
// without corroboration.
const (
	PermissionCap = 50
	BehaviorCap   = 50
)

// dangerousPermissions is the fixed categorical risk table for extension
// permissions. Host patterns are scored separately.
var dangerousPermissions = map[string]int{
	"debugger":              12,
	"proxy":                 10,
	"webRequest":            10,
	"nativeMessaging":       10,
	"cookies":               8,
	"history":               8,
	"scripting":             7,
	"clipboardRead":         7,
	"tabs":                  6,
	"management":            6,
	"downloads":             5,
	"privacy":               5,
	"browsingData":          5,
	"declarativeNetRequest": 4,
	"bookmarks":             3,
	"notifications":         1,
	"storage":               1,
}

const allURLsHostScore = 12

// PermissionScore computes the capped categorical permission risk for an
// extension's declared capability set.
func PermissionScore(info models.ExtensionInfo) int {
	score := 0
	for _, permission := range info.Permissions {
		score += dangerousPermissions[permission]
	}
	for _, host := range info.HostAccess {
		if host == "<all_urls>" || strings.HasPrefix(host, "*://*") {
			score += allURLsHostScore
			break
		}
	}
	if score > PermissionCap {
		score = PermissionCap
	}
	return score
}

// BehaviorScore combines pattern-detector findings with raw request volume,
// clamped to the category cap.
func BehaviorScore(findings []models.SuspiciousPattern, requestCount int) int {
	score := 0
	for _, finding := range findings {
		score += finding.Score
	}

	switch {
	case requestCount > 2000:
		score += 10
	case requestCount > 500:
		score += 5
	}

	if score > BehaviorCap {
		score = BehaviorCap
	}
	return score
}

// Assess produces the combined, bounded risk assessment for one extension.
// The result is deterministic given the inputs.
func Assess(info models.ExtensionInfo, findings []models.SuspiciousPattern, requestCount int) models.RiskAssessment {
	extFindings := make([]models.SuspiciousPattern, 0, len(findings))
	for _, finding := range findings {
		if finding.ExtensionID == info.ID {
			extFindings = append(extFindings, finding)
		}
	}

	permissionScore := PermissionScore(info)
	behaviorScore := BehaviorScore(extFindings, requestCount)

	total := permissionScore + behaviorScore
	if total > 100 {
		total = 100
	}

	return models.RiskAssessment{
		ExtensionID:     info.ID,
		Score:           total,
		Level:           LevelFor(total),
		PermissionScore: permissionScore,
		BehaviorScore:   behaviorScore,
		Findings:        extFindings,
	}
}

// LevelFor maps a score to its severity level via a fixed staircase.
func LevelFor(score int) models.RiskLevel {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	case score >= 20:
		return models.RiskLow
	default:
		return models.RiskMinimal
	}
}
