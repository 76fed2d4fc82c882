package stage

import (
	"encoding/json"

	"github.com/twinfold/contextd/pkg/completion"
)

// progressionSchema constrains the stage-identification call. The decision
// to progress is the model's, delivered through this contract; nothing in
// the engine infers progress from content length or turn counts.
var progressionSchema = completion.Schema{
	Name: "stage_progression",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"gathered_information": {"type": "string"},
			"progress_stage": {"type": "boolean"}
		},
		"required": ["gathered_information", "progress_stage"],
		"additionalProperties": false
	}`),
}

// progressionDecision is the decoded stage-identification result.
type progressionDecision struct {
	GatheredInformation string `json:"gathered_information"`
	ProgressStage       bool   `json:"progress_stage"`
}

// queryQuestionsSchema constrains the retrieval query generation call.
var queryQuestionsSchema = completion.Schema{
	Name: "query_questions",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query_questions": {
				"type": "array",
				"items": {"type": "string"}
			}
		},
		"required": ["query_questions"],
		"additionalProperties": false
	}`),
}

// queryQuestionsResult is the decoded query generation result.
type queryQuestionsResult struct {
	QueryQuestions []string `json:"query_questions"`
}
