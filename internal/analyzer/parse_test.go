package analyzer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

const validBlueprint = `{
  "profileSnapshot": {
    "tone": "Direct and upbeat",
    "typicalLength": "short, ~120 chars",
    "emojiUsage": "minimal 🚀",
    "formattingHabits": "line breaks, no hashtags"
  },
  "coreThemes": ["indie hacking", "SaaS", "growth"],
  "beliefSystem": {
    "pushes": ["ship fast", "build in public"],
    "avoids": ["VC funding"]
  },
  "tweetFormulas": ["Hot take + proof", "Numbers update"],
  "whyItWorks": {
    "hooks": "Bold first line",
    "psychology": "Social proof",
    "audienceAlignment": "Aspiring founders"
  },
  "exampleTweets": ["Shipped. Again.", "MRR update: up and to the right"]
}`

func expectedBlueprint() *types.StructuredAnalysis {
	return &types.StructuredAnalysis{
		StyleSnapshot: types.StyleSnapshot{
			Tone:             "Direct and upbeat",
			TypicalLength:    "short, ~120 chars",
			EmojiUsage:       "minimal 🚀",
			FormattingHabits: "line breaks, no hashtags",
		},
		Themes:   []string{"indie hacking", "SaaS", "growth"},
		Beliefs:  types.Beliefs{Pushes: []string{"ship fast", "build in public"}, Avoids: []string{"VC funding"}},
		Formulas: []string{"Hot take + proof", "Numbers update"},
		Rationale: types.Rationale{
			Hooks:       "Bold first line",
			Psychology:  "Social proof",
			AudienceFit: "Aspiring founders",
		},
		ExampleContent: []string{"Shipped. Again.", "MRR update: up and to the right"},
	}
}

func withoutField(t *testing.T, field string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(validBlueprint), &m))
	delete(m, field)
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func TestParseAnalysisFencedObject(t *testing.T) {
	raw := "```json\n" + validBlueprint + "\n```"

	got, ok := ParseAnalysis(raw)
	require.True(t, ok)
	assert.Equal(t, expectedBlueprint(), got)
}

func TestParseAnalysisMissingThemesIsAbsent(t *testing.T) {
	raw := "```json\n" + withoutField(t, "coreThemes") + "\n```"

	got, ok := ParseAnalysis(raw)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestParseAnalysisExtractsEmbeddedObject(t *testing.T) {
	raw := "Sure! Here is the blueprint you asked for:\n" + validBlueprint + "\nLet me know if you need more."

	got, ok := ParseAnalysis(raw)
	require.True(t, ok)
	assert.Equal(t, expectedBlueprint(), got)
}

func TestParseAnalysisRejectsWrongShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I cannot help with that."},
		{"array", `["a","b"]`},
		{"themes is a string", strings.Replace(validBlueprint, `["indie hacking", "SaaS", "growth"]`, `"indie hacking"`, 1)},
		{"themes holds numbers", strings.Replace(validBlueprint, `["indie hacking", "SaaS", "growth"]`, `[1, 2]`, 1)},
		{"snapshot missing tone", strings.Replace(validBlueprint, `"tone": "Direct and upbeat",`, ``, 1)},
		{"beliefs avoids null", strings.Replace(validBlueprint, `"avoids": ["VC funding"]`, `"avoids": null`, 1)},
		{"rationale is a list", strings.Replace(validBlueprint, `"whyItWorks": {`, `"whyItWorks": [{`, 1)},
		{"truncated", validBlueprint[:len(validBlueprint)/2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAnalysis(tt.raw)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}

	for _, field := range []string{"profileSnapshot", "beliefSystem", "tweetFormulas", "whyItWorks", "exampleTweets"} {
		t.Run("missing "+field, func(t *testing.T) {
			_, ok := ParseAnalysis(withoutField(t, field))
			assert.False(t, ok)
		})
	}
}

func TestParseAnalysisAcceptsExtraFields(t *testing.T) {
	raw := strings.Replace(validBlueprint, `"coreThemes"`, `"confidence": 0.9, "coreThemes"`, 1)

	got, ok := ParseAnalysis(raw)
	require.True(t, ok)
	assert.Equal(t, expectedBlueprint(), got)
}
