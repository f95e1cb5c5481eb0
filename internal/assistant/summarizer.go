// Package assistant writes short natural-language agenda summaries through an
// OpenAI-compatible chat completion API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

const (
	defaultModel       = openai.GPT4oMini
	summaryTemperature = 0.3
	systemPrompt       = "You are a friendly health assistant. Summarize the user's medications and appointments for the day in two or three short sentences. Never give medical advice beyond the schedule."
)

var (
	// ErrEmptyResponse indicates the completion API returned no choices.
	ErrEmptyResponse = errors.New("assistant: empty completion response")

	errMissingClient = errors.New("assistant: chat client is required")
)

// ChatCompleter is the subset of *openai.Client the summarizer uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config describes the dependencies of a Summarizer.
type Config struct {
	Client ChatCompleter
	Model  string
	Logger *zap.Logger
}

// Summarizer turns a calendar projection into a short agenda summary.
type Summarizer struct {
	client ChatCompleter
	model  string
	logger *zap.Logger
}

// NewOpenAIClient builds a client for apiKey; an empty baseURL keeps the
// default OpenAI endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewSummarizer constructs a Summarizer.
func NewSummarizer(cfg Config) (*Summarizer, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{client: cfg.Client, model: model, logger: logger}, nil
}

// Summarize describes the projection. An empty day is answered locally
// without calling the API.
func (s *Summarizer) Summarize(ctx context.Context, projection calendar.Projection) (string, error) {
	if len(projection.Visible) == 0 {
		return fmt.Sprintf("Nothing is scheduled for %s.", displayDate(projection.SelectedDate)), nil
	}

	response, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: AgendaPrompt(projection)},
		},
		Temperature: summaryTemperature,
	})
	if err != nil {
		s.logger.Warn("agenda summary failed",
			zap.String("date", projection.SelectedDate),
			zap.Error(err))
		return "", fmt.Errorf("assistant: chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// AgendaPrompt renders the projection as the user message of the request.
func AgendaPrompt(projection calendar.Projection) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Agenda for %s.\n", displayDate(projection.SelectedDate))
	writeSection(&builder, "Medications still to take", projection.Medications.Pending)
	writeSection(&builder, "Medications already taken", projection.Medications.Completed)
	writeSection(&builder, "Appointments", projection.Appointments)
	return builder.String()
}

func writeSection(builder *strings.Builder, heading string, list []events.HealthEvent) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(builder, "%s:\n", heading)
	for _, event := range list {
		line := fmt.Sprintf("- %s at %s", event.Title, event.Time)
		if event.Subtitle != "" {
			line += " (" + event.Subtitle + ")"
		}
		builder.WriteString(line + "\n")
	}
}

func displayDate(date string) string {
	parsed, err := events.ParseDate(date)
	if err != nil {
		return date
	}
	return parsed.Format("Monday, January 2, 2006")
}
