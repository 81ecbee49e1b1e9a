package llm

import (
	"fmt"
	"strings"
)

// LabelPrompt builds the prompt asking the model to choose or synthesize
// a canonical label for a set of observed wording variations of the same
// behavior.
func LabelPrompt(wordingVariations []string) string {
	var sb strings.Builder
	sb.WriteString("The following short phrases were independently observed and judged to describe the same underlying user behavior:\n\n")
	for _, w := range wordingVariations {
		fmt.Fprintf(&sb, "- %s\n", w)
	}
	sb.WriteString("\nRespond with a single short canonical label (at most 8 words) capturing the common behavior, and nothing else.")
	return sb.String()
}

// ArchetypePrompt builds the prompt asking the model to synthesize a
// user's PRIMARY-tier behavior clusters into one archetype.
func ArchetypePrompt(primaryClusterLabels []string) string {
	var sb strings.Builder
	sb.WriteString("A user has been observed to consistently exhibit the following behaviors:\n\n")
	for _, l := range primaryClusterLabels {
		fmt.Fprintf(&sb, "- %s\n", l)
	}
	sb.WriteString("\nRespond with one line in the form \"LABEL: description\", where LABEL is a short archetype name (at most 5 words) and description is one sentence summarizing how these behaviors fit together.")
	return sb.String()
}
