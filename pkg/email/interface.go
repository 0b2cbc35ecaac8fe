package email

import "context"

type EmailProvider interface {
	SendEmail(ctx context.Context, request *EmailRequest) (*EmailResponse, error)
	SendBulkEmails(ctx context.Context, requests []*EmailRequest) ([]*EmailResponse, error)
}

type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    bool   `json:"html"`
}

type EmailResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	To      string `json:"to,omitempty"`
}
