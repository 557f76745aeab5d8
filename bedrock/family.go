package bedrock

import "strings"

// Family classifies model backends by the wire shape they expect. It is a
// closed set: each family implements the same format/extract capability pair.
type Family int

const (
	// FamilyUnknown is the zero value for identifiers that match no family.
	FamilyUnknown Family = iota

	// FamilyFlatText carries message content as a single string and keeps
	// system text in a dedicated slot (Claude on Bedrock).
	FamilyFlatText

	// FamilyStructuredContent carries message content as an array of typed
	// parts and has no system slot (Amazon Nova).
	FamilyStructuredContent
)

func (f Family) String() string {
	switch f {
	case FamilyFlatText:
		return "flat-text"
	case FamilyStructuredContent:
		return "structured-content"
	default:
		return "unknown"
	}
}

// FamilyForModel resolves the capability flag from a Bedrock model identifier.
func FamilyForModel(modelID string) Family {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "claude"):
		return FamilyFlatText
	case strings.Contains(id, "nova"):
		return FamilyStructuredContent
	default:
		return FamilyUnknown
	}
}
