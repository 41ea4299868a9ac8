package curriculum

import (
	"fmt"
	"sort"
	"strings"
)

// shapeExample is embedded verbatim in the curriculum prompt.
const shapeExample = `{
  "skill": "string",
  "experienceLevel": "string",
  "curriculum": {
    "title": "string",
    "description": "string",
    "modules": [
      {
        "title": "string",
        "description": "string",
        "steps": [
          {
            "title": "string",
            "description": "string",
            "estimated_time": "string (optional)",
            "resources": [ { "title": "string", "url": "string (absolute URL)" } ]
          }
        ],
        "assignment": { "title": "string", "description": "string", "estimated_time": "string (optional)" }
      }
    ]
  }
}`

// ContextSentence describes the target level to the model.
func ContextSentence(level ExperienceLevel, assessmentContext string) string {
	if level != LevelCustom {
		return fmt.Sprintf("The target experience level is %s.", level)
	}
	if strings.TrimSpace(assessmentContext) != "" {
		return fmt.Sprintf("The learner's experience level was assessed with a short quiz. Summary of the assessment: %s. Tailor the curriculum to this assessment.", assessmentContext)
	}
	return "The target experience level is custom, but no assessment was provided. Assume a level slightly above beginner and build a foundational but adaptable curriculum."
}

// BuildPrompt returns the instruction sent to the model for a curriculum.
// It is deterministic in its inputs.
func BuildPrompt(skill string, level ExperienceLevel, assessmentContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Act as an expert curriculum designer for the skill: \"%s\".\n", skill)
	b.WriteString(ContextSentence(level, assessmentContext))
	b.WriteString("\n\nGenerate a detailed, step-by-step learning curriculum.\n\n")
	b.WriteString("The curriculum MUST:\n")
	b.WriteString("1. Be structured into logical modules. Every module has a title, a description and an ordered list of steps.\n")
	b.WriteString("2. Include a practical assignment in EACH module, with a title, a description of the task and optionally an estimated completion time. The assignment must make the learner apply or reinforce what that module covers.\n")
	b.WriteString("3. Give every step a title, a description and optionally an estimated time (estimated_time).\n")
	b.WriteString("4. Attach resources to steps where appropriate. Each resource has a title and a url that is verified, directly accessible and genuinely free. Use search to verify links. Do not invent URLs. Prefer official documentation and reputable free learning platforms. If no suitable free resource exists for a step, omit the resources field for that step entirely.\n")
	fmt.Fprintf(&b, "5. Set \"skill\" to \"%s\" and \"experienceLevel\" to \"%s\".\n\n", skill, string(level))
	b.WriteString("The response must match this JSON structure:\n")
	b.WriteString(shapeExample)
	b.WriteString("\n\nReturn ONLY the raw JSON object. Do not add any introduction, explanation or markdown code fences around it.")
	return b.String()
}

// BuildQuizPrompt returns the instruction for generating an experience quiz.
func BuildQuizPrompt(skill string) string {
	return fmt.Sprintf("Generate 3-5 multiple-choice quiz questions that assess a learner's familiarity with the basics of \"%s\". "+
		"Each question needs a unique id, the question text and 2-5 options with a short value and a label. "+
		`Return ONLY the raw JSON object matching this structure: {"questions": [{"id": "q1", "text": "Question?", "options": [{"value": "a", "label": "Option A"}]}]}`+
		" with no code fences.", skill)
}

// BuildAssessmentPrompt returns the instruction for grading quiz answers.
// Answers are listed in question id order.
func BuildAssessmentPrompt(skill string, answers map[string]string) string {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "A learner wants to learn \"%s\". They answered a short quiz (question id: selected option value):\n", skill)
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, answers[id])
	}
	b.WriteString("\nBased ONLY on these answers, assess their experience level. Choose one of: beginner, intermediate, advanced. ")
	b.WriteString("Optionally give a brief rationale. ")
	b.WriteString(`Return ONLY the raw JSON object matching this structure: {"level": "beginner", "rationale": "brief explanation"} with no code fences.`)
	return b.String()
}
