package insight

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// IngestRequest is the body of an ingestion call. Item fields stay raw so
// each one can be type-checked and reported individually.
type IngestRequest struct {
	Feedback []ItemPayload `json:"feedback"`
}

type ItemPayload struct {
	ID     json.RawMessage `json:"id"`
	Text   json.RawMessage `json:"text"`
	Source json.RawMessage `json:"source"`
	URL    json.RawMessage `json:"url"`
}

type FieldViolation struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a whole batch.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid feedback batch"
	}
	v := e.Violations[0]
	msg := fmt.Sprintf("invalid feedback batch: %s: %s", v.path(), v.Message)
	if n := len(e.Violations) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

func (v FieldViolation) path() string {
	if v.Index < 0 {
		return v.Field
	}
	return fmt.Sprintf("feedback[%d].%s", v.Index, v.Field)
}

// DecodeIngestRequest parses a raw body and validates it.
func DecodeIngestRequest(body []byte) ([]FeedbackItem, error) {
	var raw struct {
		Feedback *[]ItemPayload `json:"feedback"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ValidationError{Violations: []FieldViolation{
			{Index: -1, Field: "body", Message: "must be a JSON object"},
		}}
	}
	if raw.Feedback == nil {
		return nil, &ValidationError{Violations: []FieldViolation{
			{Index: -1, Field: "feedback", Message: "is required and must be an array"},
		}}
	}
	return ParseFeedback(IngestRequest{Feedback: *raw.Feedback})
}

// ParseFeedback validates every item and returns them in arrival order.
// Any violation rejects the whole request.
func ParseFeedback(req IngestRequest) ([]FeedbackItem, error) {
	var violations []FieldViolation
	items := make([]FeedbackItem, 0, len(req.Feedback))
	seen := make(map[int64]int, len(req.Feedback))

	for i, p := range req.Feedback {
		var item FeedbackItem
		bad := func(field, msg string) {
			violations = append(violations, FieldViolation{Index: i, Field: field, Message: msg})
		}

		if isAbsent(p.ID) {
			bad("id", "is required")
		} else if err := json.Unmarshal(p.ID, &item.ID); err != nil {
			bad("id", "must be an integer")
		} else if first, dup := seen[item.ID]; dup {
			bad("id", fmt.Sprintf("duplicates feedback[%d].id", first))
		} else {
			seen[item.ID] = i
		}

		if text, msg := requiredString(p.Text); msg != "" {
			bad("text", msg)
		} else {
			item.Text = text
		}

		if source, msg := requiredString(p.Source); msg != "" {
			bad("source", msg)
		} else {
			item.Source = source
		}

		if !isAbsent(p.URL) {
			var u string
			if err := json.Unmarshal(p.URL, &u); err != nil {
				bad("url", "must be a string")
			} else if !isValidURL(u) {
				bad("url", "must be an absolute http(s) URL")
			} else {
				item.URL = u
			}
		}

		items = append(items, item)
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return items, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func requiredString(raw json.RawMessage) (string, string) {
	if isAbsent(raw) {
		return "", "is required"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", "must be a string"
	}
	if strings.TrimSpace(s) == "" {
		return "", "must not be empty"
	}
	return s, ""
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
