package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smokestack/smokestack-backend/pkg/config"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// MailerService sends transactional email through the provider's HTTP API
type MailerService struct {
	cfg    config.MailConfig
	client *http.Client
	logger *logger.Logger
}

// NewMailerService creates a new mailer service
func NewMailerService(cfg config.MailConfig, log *logger.Logger) *MailerService {
	return &MailerService{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one message to the provider
func (s *MailerService) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(sendRequest{
		From:    s.cfg.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// SendInvitation sends the staff invitation email with the accept link
func (s *MailerService) SendInvitation(ctx context.Context, baseURL, email, firstName, storeName, role, token, expiresAt string) error {
	link := fmt.Sprintf("%s/invitations/accept?token=%s", baseURL, token)
	subject := fmt.Sprintf("You're invited to join %s", storeName)
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>You've been invited to join the %s team as a %s.</p>
<p><a href="%s">Accept your invitation</a> before %s to set up your account.</p>`,
		firstName, storeName, role, link, expiresAt,
	)
	return s.Send(ctx, email, subject, html)
}
