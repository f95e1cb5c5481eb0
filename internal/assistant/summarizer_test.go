package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

func TestSummarizeSendsAgendaAndReturnsReply(t *testing.T) {
	client := &fakeCompleter{reply: "  Take Metformin at 8.  "}
	summarizer := mustSummarizer(t, client)

	summary, err := summarizer.Summarize(context.Background(), sampleProjection())
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary != "Take Metformin at 8." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if client.request.Model != defaultModel {
		t.Fatalf("expected default model, got %q", client.request.Model)
	}
	if len(client.request.Messages) != 2 || client.request.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("unexpected messages %#v", client.request.Messages)
	}
	prompt := client.request.Messages[1].Content
	for _, want := range []string{"Friday, January 10, 2025", "Medications still to take:", "- Metformin at 08:00 AM (500 mg)", "Appointments:", "- Cardiology at 02:30 PM"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "already taken") {
		t.Fatalf("empty sections must be omitted:\n%s", prompt)
	}
}

func TestSummarizeEmptyDaySkipsAPI(t *testing.T) {
	client := &fakeCompleter{}
	summarizer := mustSummarizer(t, client)

	summary, err := summarizer.Summarize(context.Background(), calendar.Project(nil, "20250110"))
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no API call, got %d", client.calls)
	}
	if !strings.Contains(summary, "Nothing is scheduled") {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestSummarizeReportsFailures(t *testing.T) {
	testCases := []struct {
		name   string
		client *fakeCompleter
		want   error
	}{
		{name: "api error", client: &fakeCompleter{err: errUpstream}, want: errUpstream},
		{name: "no choices", client: &fakeCompleter{noChoices: true}, want: ErrEmptyResponse},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := mustSummarizer(t, testCase.client).Summarize(context.Background(), sampleProjection())
			if !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
		})
	}
}

func TestNewSummarizerRequiresClient(t *testing.T) {
	if _, err := NewSummarizer(Config{}); !errors.Is(err, errMissingClient) {
		t.Fatalf("expected errMissingClient, got %v", err)
	}
}

var errUpstream = errors.New("upstream unavailable")

func mustSummarizer(t *testing.T, client ChatCompleter) *Summarizer {
	t.Helper()
	summarizer, err := NewSummarizer(Config{Client: client})
	if err != nil {
		t.Fatalf("failed to create summarizer: %v", err)
	}
	return summarizer
}

func sampleProjection() calendar.Projection {
	return calendar.Project([]events.HealthEvent{
		{
			ID:         "med-1",
			UserID:     "user-1",
			Title:      "Metformin",
			Subtitle:   "500 mg",
			Time:       "08:00 AM",
			StartDate:  "20250101",
			Type:       events.EventTypeMedication,
			Recurrence: events.RecurrenceDaily,
		},
		{
			ID:         "appt-1",
			UserID:     "user-1",
			Title:      "Cardiology",
			Time:       "02:30 PM",
			StartDate:  "20250110",
			Type:       events.EventTypeAppointment,
			Recurrence: events.RecurrenceOneTime,
		},
	}, "20250110")
}

type fakeCompleter struct {
	reply     string
	err       error
	noChoices bool
	calls     int
	request   openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.request = request
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.noChoices {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}
