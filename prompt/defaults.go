package prompt

// Template names registered by RegisterDefaults.
const (
	// ToolInstructions renders the tool catalog and the JSON call shape
	// into the system slot of a generation request.
	ToolInstructions = "tool_instructions"

	// ForcedSummary is the synthesized terminal answer substituted when a
	// generation is cut short by the loop guard.
	ForcedSummary = "forced_summary"
)

const toolInstructionsContent = `
AVAILABLE TOOLS:
{{range .Tools}}- {{.Name}}: {{.Description}}
{{end}}
TOOL USAGE INSTRUCTIONS:
When you need to use a tool, format your response as JSON like this:
{"name": "tool_name", "arguments": {"param1": "value1", "param2": "value2"}}

You can use multiple tools in sequence. Always use tools when you need to
search for information, write files, or run commands.

CRITICAL RULES:
- Use web_search ONLY ONCE per task
- After getting search results, NEVER search again
- Create the final answer immediately with the information obtained
- If you have already searched, answer with the available information
- Maximum 3 interactions total per task`

const forcedSummaryContent = `Here is the final answer for: {{.Goal}}

{{.Context}}

The repeated research and planning rounds were concluded so the result above
could be delivered within the interaction budget. It reflects all information
gathered so far.`

// RegisterDefaults installs the built-in templates on the manager.
func RegisterDefaults(m *Manager) error {
	if err := m.RegisterString(ToolInstructions, toolInstructionsContent); err != nil {
		return err
	}
	return m.RegisterString(ForcedSummary, forcedSummaryContent)
}
