package gemini

// InlineData carries base64-encoded media inside a request part.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one element of a content message. Exactly one field is set.
type Part struct {
	InlineData *InlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// Content is a role-tagged message.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// GenerateContentRequest is the generateContent body. It intentionally has
// no model or generation config fields: the endpoint path selects the model.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// Outcome is the result of one Analyze call.
// Analysis and Error are never both set.
type Outcome struct {
	Success    bool   `json:"success"`
	Analysis   string `json:"analysis,omitempty"`
	ModelUsed  string `json:"model_used,omitempty"`
	TokensUsed int    `json:"tokens_used"`
	Error      string `json:"error,omitempty"`

	// Failure detail for callers that want more than the message.
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Attempts   int    `json:"attempts"`
	Cached     bool   `json:"cached,omitempty"`
}

// Failed reports whether o is a negative outcome.
func (o Outcome) Failed() bool { return !o.Success }
