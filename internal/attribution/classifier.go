package attribution

import (
	"net/url"
	"strings"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/urlhandler"
	"github.com/google/uuid"
)

// UnknownExtensionName is used when a record references an extension the
// registry has not (yet) seen. The record still carries the raw id: an
// attribution must never silently lose a suspicious event.
const UnknownExtensionName = "Unknown Extension"

// extensionSchemes are the origin schemes that identify extension execution
// contexts across the supported browser families.
var extensionSchemes = map[string]bool{
	"chrome-extension": true,
	"moz-extension":    true,
	"extension":        true,
}

// Classify converts a raw observation into the canonical attributed record.
// It is a pure function of the event and the registry snapshot: deterministic,
// no I/O. Malformed URLs classify to the "unknown" domain instead of failing.
func Classify(raw models.RawRequestEvent, snapshot map[string]models.ExtensionInfo) models.NetworkRequestRecord {
	record := models.NetworkRequestRecord{
		ID:           uuid.NewString(),
		Timestamp:    raw.Timestamp,
		URL:          raw.URL,
		Method:       raw.Method,
		Domain:       urlhandler.ExtractDomain(raw.URL),
		ResourceType: raw.ResourceType,
		Initiator:    raw.Initiator,
		TabID:        raw.TabID,
		FrameID:      raw.FrameID,
		DetectedBy:   models.DetectedByDirectObservation,
	}

	initiatorType, extensionID := classifyInitiator(raw.Initiator)
	record.InitiatorType = initiatorType

	if initiatorType == models.InitiatorExtension {
		record.ExtensionID = extensionID
		if info, ok := snapshot[extensionID]; ok {
			record.ExtensionName = info.Name
		} else {
			record.ExtensionName = UnknownExtensionName
		}
	}

	return record
}

// classifyInitiator inspects the origin scheme: extension schemes attribute to
// an extension, http/https to a page, an absent initiator to the browser
// itself, and anything else is unknown.
func classifyInitiator(initiator string) (models.InitiatorType, string) {
	if strings.TrimSpace(initiator) == "" {
		return models.InitiatorBrowser, ""
	}

	parsed, err := url.Parse(initiator)
	if err != nil || parsed.Scheme == "" {
		return models.InitiatorUnknown, ""
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case extensionSchemes[scheme]:
		return models.InitiatorExtension, parsed.Host
	case scheme == "http" || scheme == "https":
		return models.InitiatorPage, ""
	default:
		return models.InitiatorUnknown, ""
	}
}
