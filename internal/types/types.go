package types

// ContentItem is one normalized post extracted from a source
type ContentItem struct {
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"date,omitempty" yaml:"date,omitempty"`
}

// Profile describes the account whose posts were analyzed
type Profile struct {
	Handle      string `json:"username" yaml:"username"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	AvatarURL   string `json:"avatarUrl" yaml:"avatarUrl"`
	Bio         string `json:"bio" yaml:"bio"`
}

// StyleSnapshot summarizes voice and formatting
type StyleSnapshot struct {
	Tone             string `json:"tone" yaml:"tone"`
	TypicalLength    string `json:"typicalLength" yaml:"typicalLength"`
	EmojiUsage       string `json:"emojiUsage" yaml:"emojiUsage"`
	FormattingHabits string `json:"formattingHabits" yaml:"formattingHabits"`
}

// Beliefs is what the account promotes vs avoids
type Beliefs struct {
	Pushes []string `json:"pushes" yaml:"pushes"`
	Avoids []string `json:"avoids" yaml:"avoids"`
}

// Rationale explains why the content resonates
type Rationale struct {
	Hooks       string `json:"hooks" yaml:"hooks"`
	Psychology  string `json:"psychology" yaml:"psychology"`
	AudienceFit string `json:"audienceAlignment" yaml:"audienceAlignment"`
}

// StructuredAnalysis is the style blueprint produced by the language model.
// JSON field names match the shape requested in the generation prompt.
type StructuredAnalysis struct {
	StyleSnapshot  StyleSnapshot `json:"profileSnapshot" yaml:"profileSnapshot"`
	Themes         []string      `json:"coreThemes" yaml:"coreThemes"`
	Beliefs        Beliefs       `json:"beliefSystem" yaml:"beliefSystem"`
	Formulas       []string      `json:"tweetFormulas" yaml:"tweetFormulas"`
	Rationale      Rationale     `json:"whyItWorks" yaml:"whyItWorks"`
	ExampleContent []string      `json:"exampleTweets" yaml:"exampleTweets"`
}

// Meta carries response bookkeeping
type Meta struct {
	ItemCount   int    `json:"tweetCount"`
	GeneratedAt string `json:"generatedAt"`
	Disclaimer  string `json:"disclaimer"`
	Degraded    bool   `json:"isDemoMode"`
}

// AnalyzeResponse is the success payload returned to callers
type AnalyzeResponse struct {
	Profile  Profile            `json:"profile"`
	Analysis StructuredAnalysis `json:"analysis"`
	Meta     Meta               `json:"meta"`
}

// ErrorResponse is the error payload returned to callers
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ChatMessage is one turn of a persona chat
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks questions about a previously generated blueprint
type ChatRequest struct {
	Handle   string              `json:"username"`
	Persona  *StructuredAnalysis `json:"persona"`
	Messages []ChatMessage       `json:"messages"`
}
