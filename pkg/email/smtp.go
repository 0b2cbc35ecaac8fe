package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
}

func NewSMTPProvider(host string, port int, username, password, fromEmail, fromName string) *SMTPProvider {
	return &SMTPProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SMTPProvider) SendEmail(ctx context.Context, request *EmailRequest) (*EmailResponse, error) {
	if err := ctx.Err(); err != nil {
		return &EmailResponse{Success: false, Error: err.Error(), To: request.To}, err
	}

	msg := s.buildMessage(request)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	err := smtp.SendMail(addr, auth, s.fromEmail, []string{request.To}, msg)
	if err != nil {
		return &EmailResponse{
			Success: false,
			Error:   err.Error(),
			To:      request.To,
		}, err
	}

	return &EmailResponse{
		Success: true,
		To:      request.To,
	}, nil
}

func (s *SMTPProvider) SendBulkEmails(ctx context.Context, requests []*EmailRequest) ([]*EmailResponse, error) {
	responses := make([]*EmailResponse, len(requests))

	for i, req := range requests {
		resp, err := s.SendEmail(ctx, req)
		if err != nil {
			resp = &EmailResponse{
				Success: false,
				Error:   err.Error(),
				To:      req.To,
			}
		}
		responses[i] = resp
	}

	return responses, nil
}

func (s *SMTPProvider) buildMessage(request *EmailRequest) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.fromName, s.fromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", request.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", request.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if request.HTML {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(request.Body)

	return []byte(b.String())
}
