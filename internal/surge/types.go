package surge

// WebhookPayload is the body Surge posts for message events.
type WebhookPayload struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data MessageData `json:"data"`
}

type MessageData struct {
	ID           string       `json:"id"`
	Body         string       `json:"body"`
	Direction    string       `json:"direction"` // inbound, outbound
	Conversation Conversation `json:"conversation"`
}

type Conversation struct {
	Contact Contact `json:"contact"`
}

type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// Name joins the contact's first and last name when Surge knows them.
func (c Contact) Name() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	}
	return c.LastName
}

// SendResult reports the outcome of one outbound message.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

type sendRequest struct {
	Conversation Conversation `json:"conversation"`
	Body         string       `json:"body"`
}

type sendResponse struct {
	ID string `json:"id"`
}
