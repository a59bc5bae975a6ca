package chat

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// Turn is one prior exchange. Text is the short form; Parts wins when both are set.
type Turn struct {
	Role  string `json:"role"`
	Text  string `json:"text,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Request struct {
	// Plan selects the advisor persona. It is independent of the billed plan.
	Plan         string `json:"plan"`
	Message      string `json:"message"`
	MessageParts []Part `json:"messageParts,omitempty"`
	History      []Turn `json:"history,omitempty"`
}
