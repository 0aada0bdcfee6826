package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agenciohq/agencio/internal/pkg/env"
)

const defaultAPIBaseURL = "https://graph.facebook.com/v19.0"

// Gateway sends templated messages through the messaging provider's cloud
// API. Outbound sends always use a pre-approved template name with positional
// body parameters.
type Gateway struct {
	AccessToken   string
	PhoneNumberID string
	APIBaseURL    string
	LanguageCode  string

	HTTPClient *http.Client
}

type templateRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// NewGatewayFromEnv builds the gateway from environment configuration.
func NewGatewayFromEnv() *Gateway {
	return &Gateway{
		AccessToken:   strings.TrimSpace(env.GetEnv("MESSAGING_ACCESS_TOKEN", "")),
		PhoneNumberID: strings.TrimSpace(env.GetEnv("MESSAGING_PHONE_NUMBER_ID", "")),
		APIBaseURL:    strings.TrimSpace(env.GetEnv("MESSAGING_API_BASE_URL", defaultAPIBaseURL)),
		LanguageCode:  strings.TrimSpace(env.GetEnv("MESSAGING_TEMPLATE_LANGUAGE", "de")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendTemplate sends one templated message and returns the provider message
// id. The id is what later delivery receipts will reference.
func (g *Gateway) SendTemplate(ctx context.Context, to, templateName string, params []string) (string, error) {
	if strings.TrimSpace(g.AccessToken) == "" || strings.TrimSpace(g.PhoneNumberID) == "" {
		return "", errors.New("MESSAGING_ACCESS_TOKEN/MESSAGING_PHONE_NUMBER_ID are not configured")
	}
	if strings.TrimSpace(to) == "" {
		return "", errors.New("recipient is required")
	}
	if strings.TrimSpace(templateName) == "" {
		return "", errors.New("template name is required")
	}

	payload := templateRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimSpace(to),
		Type:             "template",
		Template: templatePayload{
			Name:     templateName,
			Language: templateLanguage{Code: g.LanguageCode},
		},
	}
	if len(params) > 0 {
		component := templateComponent{Type: "body"}
		for _, p := range params {
			component.Parameters = append(component.Parameters, templateParameter{Type: "text", Text: p})
		}
		payload.Template.Components = []templateComponent{component}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(g.APIBaseURL, "/") + "/" + g.PhoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("template send failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	if len(out.Messages) == 0 || strings.TrimSpace(out.Messages[0].ID) == "" {
		return "", errors.New("template send returned no message id")
	}
	return out.Messages[0].ID, nil
}
