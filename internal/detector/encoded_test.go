package detector

import (
	"strings"
	"testing"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncodedParametersBase64Query(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	payload := strings.Repeat("QUJDRA", 12) // 72 chars of valid base64

	records := []models.NetworkRequestRecord{
		record("ext-exfil", "https://sink.example.com/upload?data="+payload, time.Now()),
		record("ext-clean", "https://api.example.com/v1/users?page=2", time.Now()),
	}

	findings := DetectEncodedParameters(records, cfg, time.Now())
	require.Len(t, findings, 1)
	assert.Equal(t, "ext-exfil", findings[0].ExtensionID)
	assert.Equal(t, models.PatternEncodedParams, findings[0].Kind)
	assert.Equal(t, 20, findings[0].Score)
}

func TestDetectEncodedParametersPercentEncodedPath(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	segment := strings.Repeat("%41", 22) // 66 chars, 22 escapes

	records := []models.NetworkRequestRecord{
		record("ext-exfil", "https://sink.example.com/"+segment, time.Now()),
	}

	findings := DetectEncodedParameters(records, cfg, time.Now())
	require.Len(t, findings, 1)
	assert.Equal(t, "ext-exfil", findings[0].ExtensionID)
}

func TestDetectEncodedParametersIgnoresShortTokens(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()

	records := []models.NetworkRequestRecord{
		record("ext-a", "https://api.example.com/search?q=QUJDRA", time.Now()),
		record("ext-a", "https://api.example.com/item/dGVzdA", time.Now()),
	}

	assert.Empty(t, DetectEncodedParameters(records, cfg, time.Now()))
}

func TestDetectEncodedParametersScoreGrowsWithHits(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	payload := strings.Repeat("QUJDRA", 12)

	records := make([]models.NetworkRequestRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, record("ext-exfil", "https://sink.example.com/upload?data="+payload, time.Now()))
	}

	findings := DetectEncodedParameters(records, cfg, time.Now())
	require.Len(t, findings, 1)
	assert.Equal(t, 30, findings[0].Score)
}

func TestIsEncodedPayload(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected bool
	}{
		{
			name:     "long base64",
			token:    strings.Repeat("QUJDRA", 12),
			expected: true,
		},
		{
			name:     "url-safe base64",
			token:    strings.Repeat("a-b_cd", 12),
			expected: true,
		},
		{
			name:     "too short",
			token:    "QUJDRA",
			expected: false,
		},
		{
			name:     "plain english words",
			token:    strings.Repeat("hello world ", 8),
			expected: false,
		},
		{
			name:     "heavy percent encoding",
			token:    strings.Repeat("%41", 22),
			expected: true,
		},
		{
			name:     "sparse percent encoding",
			token:    strings.Repeat("aaaaaaaaaaaaaaa", 6) + "%41",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isEncodedPayload(tt.token, 64))
		})
	}
}
