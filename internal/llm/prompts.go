package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedback-insights/backend/pkg/logger"
)

const insightSystemPrompt = `You are a product feedback analyst. Read one piece of customer feedback and extract structured insights.

Return ONLY a JSON object with exactly these fields:
- "painPoints": array of short strings, each a distinct problem the customer describes (empty array if none)
- "summary": one or two sentences summarising the feedback
- "priority": one of "low", "medium", "high"

Priority guide:
- high: blocks the customer, data loss, security, outage, or churn risk
- medium: degraded experience with a workaround
- low: cosmetic issues, suggestions, praise

Do not add commentary outside the JSON object.`

const answerSystemPrompt = `You are a product feedback analyst answering follow-up questions about one analysed feedback item.
Answer using only the analysis provided. If the analysis does not contain the answer, say so briefly.
Be concise and concrete.`

const conversationSystemPrompt = `You are a helpful assistant inside a team chat that reviews analysed customer feedback.
Keep answers short. When the user seems to want to browse insights, remind them of /show_insights, /search_insights <keyword> and /help.`

// ExtractInsights asks for the insight JSON for one feedback text and returns
// the raw model output. It makes exactly one attempt.
func (c *Client) ExtractInsights(ctx context.Context, text string) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt:  insightSystemPrompt,
		UserPrompt:    fmt.Sprintf("Feedback:\n\n%s", text),
		Temperature:   0.2,
		MaxTokens:     600,
		SingleAttempt: true,
		Purpose:       "analysis",
	})
	if err != nil {
		return "", err
	}

	return resp.Content, nil
}

// AnswerAboutInsight answers a question with the serialized analysis as context.
func (c *Client) AnswerAboutInsight(ctx context.Context, analysisJSON, question string) (string, error) {
	userPrompt := fmt.Sprintf(`Analysis:
%s

Question: %s`, analysisJSON, question)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    500,
		Purpose:      "question",
	})
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}

	logger.Info("Question answered", zap.Int("answer_length", len(resp.Content)))

	return resp.Content, nil
}

// Converse handles free text that is not a command.
func (c *Client) Converse(ctx context.Context, message string) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: conversationSystemPrompt,
		UserPrompt:   message,
		Temperature:  0.7,
		MaxTokens:    500,
		Purpose:      "conversation",
	})
	if err != nil {
		return "", fmt.Errorf("failed to converse: %w", err)
	}

	return resp.Content, nil
}
