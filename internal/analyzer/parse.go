package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ibeckermayer/xblueprint/internal/chain"
	"github.com/ibeckermayer/xblueprint/internal/types"
)

// Required fields of a blueprint and the shape each must have
var (
	snapshotFields  = []string{"tone", "typicalLength", "emojiUsage", "formattingHabits"}
	beliefFields    = []string{"pushes", "avoids"}
	rationaleFields = []string{"hooks", "psychology", "audienceAlignment"}
	listFields      = []string{"coreThemes", "tweetFormulas", "exampleTweets"}
)

// ParseAnalysis extracts a blueprint from model output. It returns false
// unless every required field is present with the right shape; a partial
// object is never returned.
func ParseAnalysis(raw string) (*types.StructuredAnalysis, bool) {
	candidates := []chain.Candidate[*types.StructuredAnalysis]{
		{Name: "fenced", Run: func(context.Context) (*types.StructuredAnalysis, error) {
			return decodeAnalysis(stripFences(raw))
		}},
		{Name: "braces", Run: func(context.Context) (*types.StructuredAnalysis, error) {
			obj, ok := outermostObject(raw)
			if !ok {
				return nil, fmt.Errorf("no object in response")
			}
			return decodeAnalysis(obj)
		}},
	}

	analysis, err := chain.First(context.Background(), candidates, chain.Options{})
	if err != nil {
		return nil, false
	}
	return analysis, true
}

// stripFences removes markdown code fences wherever they appear
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// outermostObject returns the text from the first '{' to the last '}'
func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func decodeAnalysis(text string) (*types.StructuredAnalysis, error) {
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, err
	}
	if err := validateShape(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}

	var analysis types.StructuredAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func validateShape(v any) error {
	root, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("top level is not an object")
	}

	if err := requireObject(root, "profileSnapshot", snapshotFields, isString); err != nil {
		return err
	}
	if err := requireObject(root, "beliefSystem", beliefFields, isStringList); err != nil {
		return err
	}
	if err := requireObject(root, "whyItWorks", rationaleFields, isString); err != nil {
		return err
	}
	for _, name := range listFields {
		if !isStringList(root[name]) {
			return fmt.Errorf("%s must be a list of strings", name)
		}
	}
	return nil
}

func requireObject(root map[string]any, name string, fields []string, check func(any) bool) error {
	obj, ok := root[name].(map[string]any)
	if !ok {
		return fmt.Errorf("%s must be an object", name)
	}
	for _, f := range fields {
		if !check(obj[f]) {
			return fmt.Errorf("%s.%s is missing or has the wrong type", name, f)
		}
	}
	return nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isStringList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if !isString(item) {
			return false
		}
	}
	return true
}
