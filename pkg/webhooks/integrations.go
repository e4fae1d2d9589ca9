package webhooks

import (
	"fmt"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
)

// SlackMessage represents a Slack incoming webhook message
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack attachment
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// FormatSlackMessage formats a report event as a Slack message
func FormatSlackMessage(event *Event) SlackMessage {
	report := event.Report
	fields := []SlackField{
		{Title: "Workspace", Value: report.WorkspaceID, Short: true},
		{Title: "Run", Value: report.RunID, Short: true},
		{Title: "Repositories", Value: fmt.Sprintf("%d", report.Summary.TotalRepositories), Short: true},
		{Title: "Packages", Value: fmt.Sprintf("%d", report.Summary.TotalDependencies), Short: true},
		{Title: "Cross-repo links", Value: fmt.Sprintf("%d", report.Summary.CrossRepoLinks), Short: true},
		{Title: "Cycles", Value: fmt.Sprintf("%d high, %d medium, %d low",
			report.Cycles[dependencies.SeverityHigh],
			report.Cycles[dependencies.SeverityMedium],
			report.Cycles[dependencies.SeverityLow]), Short: true},
	}
	if len(report.Failures) > 0 {
		fields = append(fields, SlackField{
			Title: "Skipped repositories",
			Value: fmt.Sprintf("%d", len(report.Failures)),
			Short: true,
		})
	}

	return SlackMessage{
		Text: getEventTitle(event.Type) + ": " + report.WorkspaceID,
		Attachments: []SlackAttachment{
			{
				Color:  getEventColor(event.Type),
				Title:  getEventTitle(event.Type),
				Fields: fields,
			},
		},
	}
}

// getEventColor returns the Slack color for an event type
func getEventColor(eventType EventType) string {
	if eventType == EventCyclesDetected {
		return "danger"
	}
	return "good"
}

// getEventTitle returns a human-readable title for an event type
func getEventTitle(eventType EventType) string {
	switch eventType {
	case EventCyclesDetected:
		return "Cross-repository dependency cycles detected"
	case EventGraphRefreshed:
		return "Dependency graph refreshed"
	default:
		return string(eventType)
	}
}
