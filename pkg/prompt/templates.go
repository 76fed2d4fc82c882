package prompt

// Built-in templates for the staged conversation mode. Field allow-lists
// are the render contract: a caller supplying anything outside them is
// rejected up front.

// Intro is the standing system prompt establishing the persona, the
// relationship to the user, and what earlier stages concluded.
var Intro = Template{
	Name: "intro",
	Text: "You are the following persona:\n{twinDefinition}\n\n" +
		"Your relationship with the person you are speaking to:\n{userTwinRelationship}\n\n" +
		"Summaries of the conversation stages completed so far:\n{finalizedSummaries}",
	Fields: map[string]bool{
		"twinDefinition":       true,
		"userTwinRelationship": true,
		"finalizedSummaries":   true,
	},
}

// Stage is the per-stage system prompt carrying the stage goal, the
// information still to gather, and the retrieved document set.
var Stage = Template{
	Name: "stage",
	Text: "You are currently in the conversation stage \"{stageName}\".\n" +
		"The goal of this stage: {stageGoal}\n" +
		"How to interact during this stage: {stageInteractionDefinition}\n" +
		"Information to gather before the stage is complete: {stageInformationToGather}\n\n" +
		"Reference material relevant to this stage:\n{documentSet}",
	Fields: map[string]bool{
		"stageName":                  true,
		"stageGoal":                  true,
		"stageInteractionDefinition": true,
		"stageInformationToGather":   true,
		"documentSet":                true,
	},
}

// StageIdentification asks the model to grade stage progress from the
// within-stage transcript. The response is constrained to a structured
// schema; this template only shapes the instruction.
var StageIdentification = Template{
	Name: "stage_identification",
	Text: "You are evaluating a conversation stage named \"{stageName}\".\n" +
		"The goal of the stage: {stageGoal}\n" +
		"The information the assistant must gather: {stageInformationToGather}\n\n" +
		"The conversation so far:\n{conversation}\n\n" +
		"Summarize the information gathered so far, and decide whether the " +
		"stage goal has been met and the conversation should progress to the next stage.",
	Fields: map[string]bool{
		"stageName":                true,
		"stageGoal":                true,
		"stageInformationToGather": true,
		"conversation":             true,
	},
}

// QueryQuestions asks the model for retrieval queries that would surface
// documents useful to the stage, given what has been gathered already.
var QueryQuestions = Template{
	Name: "query_questions",
	Text: "You support the following persona:\n{twinDefinition}\n\n" +
		"Completed stage summaries:\n{finalizedSummaries}\n\n" +
		"The conversation is in stage \"{stageName}\" with goal: {stageGoal}\n" +
		"How the stage is conducted: {stageInteractionDefinition}\n" +
		"Information still to gather: {stageInformationToGather}\n" +
		"Information gathered so far: {gatheredInformation}\n\n" +
		"Write search queries that would retrieve documents helpful for " +
		"advancing this stage.",
	Fields: map[string]bool{
		"twinDefinition":             true,
		"finalizedSummaries":         true,
		"stageName":                  true,
		"stageGoal":                  true,
		"stageInteractionDefinition": true,
		"stageInformationToGather":   true,
		"gatheredInformation":        true,
	},
}
