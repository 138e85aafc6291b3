package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SystemPrompt is sent as the system role where the provider supports one
const SystemPrompt = "You are a phishing detection system. Respond only with JSON."

const phishingPromptFormat = `You are a cybersecurity expert. Analyze the following email and determine whether it is a phishing attempt or safe.
Do not rely on simple keyword rules; consider the overall context, linguistic cues and the sender.
Respond with a JSON object containing:
- title: string (short title summarizing your analysis)
- details: string (brief explanation of your findings)
- severity: one of "none", "low", "medium", "high" (use "none" if the email is safe)

Email Sender: %s
Email Content:
%s

Respond only with the JSON object and nothing else.`

// AssessmentResponse is the JSON object the models are asked to produce
type AssessmentResponse struct {
	Title    string `json:"title"`
	Details  string `json:"details"`
	Severity string `json:"severity"`
}

// FormatPhishingPrompt builds the user prompt for one message
func FormatPhishingPrompt(sender, content string) string {
	if sender == "" {
		sender = "(unknown)"
	}
	return fmt.Sprintf(phishingPromptFormat, sender, content)
}

// ExtractJSON returns the outermost {...} span of text. Models often wrap
// their answer in prose or code fences.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", errors.New("no JSON object in model response")
	}
	return text[start : end+1], nil
}

// ParseAssessmentResponse decodes a model answer, tolerating surrounding text
func ParseAssessmentResponse(text string) (*AssessmentResponse, error) {
	var resp AssessmentResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return &resp, nil
	}

	jsonStr, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
	}
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &resp, nil
}
