package queue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

// Stimulus renders the task-level description shared by every persona in
// the batch: stimulus text, image note, guidance, recognized operation
// context, and the template name.
func Stimulus(task *store.Task, template *store.PromptTemplate) string {
	if task == nil {
		return "(no description)"
	}

	base := strings.TrimSpace(task.StimulusText)
	if base == "" && task.ImageName != "" {
		base = fmt.Sprintf("Proposal based on image %q", task.ImageName)
	}
	if task.ImageName != "" {
		base += fmt.Sprintf(" (image input: %s)", task.ImageName)
	}
	if g := strings.TrimSpace(task.Guidance); g != "" {
		base += "\nEvaluation guidance: " + g
	}
	if ctx := ssr.FormatContext(task.OperationContext); ctx != "" {
		base += "\nOps context: " + ctx
	}
	if template != nil {
		base += "\nTemplate: " + template.Name
	}

	base = strings.TrimSpace(base)
	if base == "" {
		return "(no description)"
	}
	return base
}

// ReactionPrompt composes the oracle prompt for one persona and one
// criterion. The oracle is asked for a short first-person reaction in
// free text; ratings, bullet lists and markdown are forbidden so the
// reply stays usable as similarity-mapping input.
func ReactionPrompt(persona *store.Persona, criterion *store.Criterion, task *store.Task, stimulus string) string {
	name := "Persona"
	age := "?"
	gender := "?"
	notes := "(no details on file)"
	if persona != nil {
		if strings.TrimSpace(persona.Name) != "" {
			name = persona.Name
		}
		if persona.Age > 0 {
			age = strconv.Itoa(persona.Age)
		}
		if strings.TrimSpace(persona.Gender) != "" {
			gender = persona.Gender
		}
		if strings.TrimSpace(persona.Notes) != "" {
			notes = persona.Notes
		}
	}

	var question string
	if criterion != nil {
		question = strings.TrimSpace(criterion.Question)
		if question == "" {
			question = criterion.Label
		}
	}

	var guidance, opsContext string
	if task != nil {
		guidance = strings.TrimSpace(task.Guidance)
		opsContext = ssr.FormatContext(task.OperationContext)
	}

	var sb strings.Builder
	sb.WriteString("Adopt the persona below and imagine you are playing this game ")
	sb.WriteString("right as the described live operation rolls out. Describe your ")
	sb.WriteString("in-the-moment feelings and what you intend to do, in one or two ")
	sb.WriteString("sentences of plain first-person prose. No numbers, no ratings, ")
	sb.WriteString("no bullet points, no markdown.\n")
	fmt.Fprintf(&sb, "Persona: %s (%s/%s)\n", name, age, gender)
	fmt.Fprintf(&sb, "Persona details: %s\n", notes)
	fmt.Fprintf(&sb, "Live operation: %s\n", stimulus)
	if question != "" {
		fmt.Fprintf(&sb, "Question on your mind: %s\n", question)
	}
	if guidance != "" {
		fmt.Fprintf(&sb, "Additional guidance: %s\n", guidance)
	}
	if opsContext != "" {
		fmt.Fprintf(&sb, "Ops context: %s\n", opsContext)
	}
	sb.WriteString("If you feel like keeping playing, spending, or quitting, say so concretely.")
	return sb.String()
}
