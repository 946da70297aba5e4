// services/sms_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hsalloum/veriflow_backend/config"
)

// SMSService delivers verification codes through a bulk-SMS HTTP gateway.
type SMSService struct {
	Username string
	Password string
	SenderID string
	APIPath  string
	Client   *http.Client
	logger   *log.Logger
}

// SMSResponse represents the gateway's reply.
type SMSResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"message_id"`
		Cost      string `json:"cost"`
	} `json:"data"`
}

// NewSMSService creates an SMS sender from validated config.
func NewSMSService(cfg *config.Config) *SMSService {
	return &SMSService{
		Username: cfg.SMSUsername,
		Password: cfg.SMSPassword,
		SenderID: cfg.SMSSenderID,
		APIPath:  cfg.SMSAPIPath,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.New(os.Stdout, "[SMS] ", log.LstdFlags),
	}
}

// Send delivers a verification code to the phone number.
func (s *SMSService) Send(ctx context.Context, identityKey, code string) error {
	message := fmt.Sprintf("Your verification code is: %s. This code will expire in 10 minutes.", code)

	// Prepare query parameters
	params := url.Values{}
	params.Set("username", s.Username)
	params.Set("password", s.Password)
	params.Set("senderid", s.SenderID)
	params.Set("destination", identityKey)
	params.Set("message", message)
	params.Set("template", "otp")

	fullURL := fmt.Sprintf("%s?%s", s.APIPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, string(body))
	}

	// Parse response
	var smsResp SMSResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		// Some gateways answer with a bare success string instead of JSON.
		responseStr := strings.ToLower(strings.TrimSpace(string(body)))
		if strings.Contains(responseStr, "success") || strings.Contains(responseStr, "sent") {
			s.logger.Printf("SMS sent to %s (non-JSON response)", identityKey)
			return nil
		}
		return fmt.Errorf("failed to parse SMS response: %w", err)
	}

	if smsResp.Status == "success" || smsResp.Status == "sent" {
		s.logger.Printf("SMS sent to %s, message ID: %s", identityKey, smsResp.Data.MessageID)
		return nil
	}

	return fmt.Errorf("SMS sending failed: %s", smsResp.Message)
}
