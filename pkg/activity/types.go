package activity

// ActivityStreams constants used in outgoing payloads.
const (
	Context        = "https://www.w3.org/ns/activitystreams"
	PublicAudience = "https://www.w3.org/ns/activitystreams#Public"
)

// Attachment is one embedded image carried alongside a note.
type Attachment struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
}

// Note is the inner object of a notification activity.
type Note struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Published    string       `json:"published"`
	AttributedTo string       `json:"attributedTo"`
	Content      string       `json:"content"`
	Sensitive    bool         `json:"sensitive"`
	CC           string       `json:"cc"`
	Attachment   []Attachment `json:"attachment"`
}

// Activity is the outgoing "Create" notification payload.
type Activity struct {
	AtContext string `json:"@context"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Published string `json:"published"`
	Object    Note   `json:"object"`
}
