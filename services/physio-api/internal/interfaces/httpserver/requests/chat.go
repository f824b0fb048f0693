package requests

// SendMessageRequest carries the message body.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}
