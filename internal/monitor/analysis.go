package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/detector"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/risk"
)

// AlertKindSuspiciousPattern tags alerts raised by the pattern detectors.
const AlertKindSuspiciousPattern = "suspicious_pattern"

// analysisLoop periodically runs the pattern detectors over the recent record
// window and raises cooldown-gated alerts for new findings.
func (s *MonitoringService) analysisLoop() {
	defer s.wg.Done()

	interval := s.cfg.AnalysisInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.serviceCtx.Done():
			return
		case <-ticker.C:
			assessments, err := s.RunAnalysis(s.serviceCtx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Pattern analysis failed")
				continue
			}
			s.raiseAlerts(s.serviceCtx, assessments)
		}
	}
}

// RunAnalysis runs all detectors over the trailing analysis window and
// assesses each installed extension that produced traffic or findings.
// Detectors are pure, so a run has no side effects beyond the returned
// assessments.
func (s *MonitoringService) RunAnalysis(ctx context.Context) ([]models.RiskAssessment, error) {
	now := time.Now()
	window := s.analysisWindow()

	s.store.Flush()
	records, err := s.store.QueryWindow(now.Add(-window))
	if err != nil {
		return nil, err
	}

	findings := detector.RunAll(records, s.detectorCfg, now)

	counts := make(map[string]int)
	for _, record := range records {
		if record.InitiatorType == models.InitiatorExtension && record.ExtensionID != "" {
			counts[record.ExtensionID]++
		}
	}

	seen := make(map[string]bool)
	for _, finding := range findings {
		seen[finding.ExtensionID] = true
	}
	for id := range counts {
		seen[id] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	assessments := make([]models.RiskAssessment, 0, len(ids))
	for _, id := range ids {
		info, ok := s.registry.Get(id)
		if !ok {
			info = models.ExtensionInfo{ID: id}
		}
		assessments = append(assessments, risk.Assess(info, findings, counts[id]))
	}

	s.logger.Debug().
		Int("records", len(records)).
		Int("findings", len(findings)).
		Int("extensions", len(assessments)).
		Msg("Pattern analysis completed")
	return assessments, nil
}

// raiseAlerts sends one alert per detector finding. The alert helper applies
// the per-(kind, extension) cooldown, so repeated findings within the window
// stay quiet.
func (s *MonitoringService) raiseAlerts(ctx context.Context, assessments []models.RiskAssessment) {
	for _, assessment := range assessments {
		for _, finding := range assessment.Findings {
			name := ""
			if info, ok := s.registry.Get(finding.ExtensionID); ok {
				name = info.Name
			}
			s.alerts.SendAlert(ctx, models.AlertEvent{
				Kind:          AlertKindSuspiciousPattern,
				ExtensionID:   finding.ExtensionID,
				ExtensionName: name,
				Message: fmt.Sprintf("%s (risk %s, score %d): %s",
					finding.Kind, assessment.Level, assessment.Score, finding.Evidence),
			})
		}
	}
}

// analysisWindow is the widest detector window, so every detector sees all
// the records it can use.
func (s *MonitoringService) analysisWindow() time.Duration {
	window := time.Hour
	if s.detectorCfg.BulkWindow > window {
		window = s.detectorCfg.BulkWindow
	}
	if s.detectorCfg.DiversityWindow > window {
		window = s.detectorCfg.DiversityWindow
	}
	return window
}
