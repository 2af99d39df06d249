package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

// chatHistory is how many recent messages a chat prompt carries
const chatHistory = 5

const analystContext = `You are an expert social media analyst specializing in X (Twitter) content strategy. Your task is to analyze a set of public tweets and produce a structured personality and writing style blueprint.

CRITICAL CONSTRAINTS:
1. You do NOT impersonate the account owner under any circumstances.
2. Your analysis is based SOLELY on publicly available content.
3. Example tweets you generate must be clearly inspired by the style, NOT copied.
4. Be concise, insightful, and actionable in your analysis.`

const blueprintShape = `{
  "profileSnapshot": {
    "tone": "<1-2 sentence description of voice and style>",
    "typicalLength": "<short/medium/long with character estimate>",
    "emojiUsage": "<none/minimal/moderate/heavy with examples>",
    "formattingHabits": "<description of threads, images, hashtags, line breaks usage>"
  },
  "coreThemes": ["<topic 1>", "<topic 2>", "<topic 3>", "<topic 4>", "<topic 5>"],
  "beliefSystem": {
    "pushes": ["<core belief 1>", "<core belief 2>", "<core belief 3>"],
    "avoids": ["<thing avoided 1>", "<thing avoided 2>"]
  },
  "tweetFormulas": ["<structural pattern 1>", "<structural pattern 2>", "<structural pattern 3>"],
  "whyItWorks": {
    "hooks": "<how they grab attention in openings>",
    "psychology": "<psychological triggers and persuasion tactics>",
    "audienceAlignment": "<who resonates with this and why>"
  },
  "exampleTweets": [
    "<AI-GENERATED EXAMPLE 1 in their style>",
    "<AI-GENERATED EXAMPLE 2 in their style>",
    "<AI-GENERATED EXAMPLE 3 in their style>"
  ]
}`

// BuildPrompt constructs the blueprint prompt for a handle's posts
func BuildPrompt(handle string, items []types.ContentItem) string {
	var sb strings.Builder

	sb.WriteString(analystContext)
	sb.WriteString(fmt.Sprintf("\n\nAnalyze the following %d tweets from @%s:\n\n---\n", len(items), handle))
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("%d. %q\n", i+1, item.Text))
	}
	sb.WriteString("---\n\n")

	sb.WriteString("Produce a JSON response with EXACTLY this structure:\n\n")
	sb.WriteString(blueprintShape)
	sb.WriteString("\n\nIMPORTANT:\n")
	sb.WriteString("Respond ONLY with valid JSON.\n")
	sb.WriteString("Do not include markdown.\n")
	sb.WriteString("Do not include explanations.\n")
	sb.WriteString("Do not include code fences.")

	return sb.String()
}

// BuildChatPrompt constructs the prompt for a question about a blueprint.
// Only the last few messages are included.
func BuildChatPrompt(handle string, persona *types.StructuredAnalysis, messages []types.ChatMessage) (string, error) {
	personaJSON, err := json.MarshalIndent(persona, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}

	if len(messages) > chatHistory {
		messages = messages[len(messages)-chatHistory:]
	}

	var history strings.Builder
	for _, m := range messages {
		speaker := "Assistant"
		if m.Role == "user" {
			speaker = "User"
		}
		history.WriteString(fmt.Sprintf("%s: %s\n", speaker, m.Content))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a helpful AI assistant. You have been provided with a \"Persona Blueprint\" analysis of the X (Twitter) account @%s.\n\n", handle))
	sb.WriteString("YOUR GOAL:\n")
	sb.WriteString(fmt.Sprintf("- Answer the user's questions about the writing style, beliefs, and themes of @%s.\n", handle))
	sb.WriteString("- Use the Persona Blueprint below as your source of truth.\n")
	sb.WriteString("- Help the user understand how to write like this person, or explain why their content works.\n\n")
	sb.WriteString("CRITICAL RULES:\n")
	sb.WriteString(fmt.Sprintf("1. You are NOT @%s. You are an AI assistant analyzing them.\n", handle))
	sb.WriteString(fmt.Sprintf("2. NEVER say \"I am %s\" or \"My beliefs are...\".\n", handle))
	sb.WriteString("3. ALWAYS say \"The analysis suggests...\", \"Their style is...\", etc.\n")
	sb.WriteString("4. If the user asks you to write a tweet, clearly label it as an example.\n")
	sb.WriteString("5. Base your answers ONLY on the provided Persona Blueprint.\n")
	sb.WriteString("6. Be concise.\n\n")
	sb.WriteString("PERSONA BLUEPRINT:\n")
	sb.Write(personaJSON)
	sb.WriteString("\n\nCONVERSATION HISTORY:\n")
	sb.WriteString(history.String())
	sb.WriteString("\nUser's latest input is the last message above.\nRespond as the Assistant.\n\n")
	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("Respond ONLY with the assistant's reply text.\n")
	sb.WriteString("Do not include JSON, markdown blocks, or explanations outside the reply.")

	return sb.String(), nil
}
