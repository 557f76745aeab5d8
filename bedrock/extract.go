package bedrock

import "encoding/json"

type flatResponse struct {
	Content []contentPart `json:"content"`
}

type structuredResponse struct {
	Output struct {
		Message struct {
			Content []contentPart `json:"content"`
		} `json:"message"`
	} `json:"output"`
}

// Extract pulls the plain-text answer out of a provider response envelope.
// A known family whose payload lacks the expected text yields a
// *MalformedResponseError; an unknown family falls back to the stringified
// raw payload so that provider drift does not hard-fail the pipeline.
func (f Family) Extract(raw []byte) (string, error) {
	switch f {
	case FamilyFlatText:
		var resp flatResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", &MalformedResponseError{Family: f, Detail: err.Error()}
		}
		if len(resp.Content) == 0 {
			return "", &MalformedResponseError{Family: f, Detail: "no content blocks"}
		}
		return resp.Content[0].Text, nil

	case FamilyStructuredContent:
		var resp structuredResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", &MalformedResponseError{Family: f, Detail: err.Error()}
		}
		if len(resp.Output.Message.Content) == 0 {
			return "", &MalformedResponseError{Family: f, Detail: "no content parts in output message"}
		}
		return resp.Output.Message.Content[0].Text, nil

	default:
		return string(raw), nil
	}
}
