package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/internal/metrics"
	"github.com/feedback-insights/backend/internal/render"
	"github.com/feedback-insights/backend/internal/session"
	"github.com/feedback-insights/backend/pkg/logger"
)

const (
	CmdShowInsights     = "/show_insights"
	CmdNextInsight      = "/next_insight"
	CmdLatestInsight    = "/latest_insight"
	CmdSearchInsights   = "/search_insights"
	CmdNextSearchResult = "/next_search_result"
	CmdAskAboutCurrent  = "/ask_about_current"
	CmdAbout            = "/about"
	CmdHelp             = "/help"

	// CmdConversation labels free text that is not a command.
	CmdConversation = "conversation"
)

const (
	codeConversationFailed = "conversation_failed"
	codeMessageTooLong     = "message_too_long"
)

const helpText = `I review analysed customer feedback with you.

/show_insights - show the first insight of the latest batch
/next_insight - move to the next insight (wraps to the start)
/latest_insight - show the last insight
/search_insights <keyword> - find insights mentioning a keyword
/next_search_result - move to the next search match
/ask_about_current <question> - ask about the insight on screen
/help - show this message

Anything else is answered as a normal conversation.`

var errorMessages = map[error]string{
	session.ErrEmptyBatch:         "No analysed feedback yet. Submit a batch to /api/v1/feedback first.",
	session.ErrNoCurrentSelection: "No insight selected. Use /show_insights or /search_insights <keyword> first.",
	session.ErrNoMoreItems:        "No more insights. Back at the start, use /next_insight to go round again.",
	session.ErrNoMoreResults:      "No more results, search again with /search_insights <keyword>.",
	session.ErrNoActiveSearch:     "No active search. Start one with /search_insights <keyword>.",
	session.ErrNoMatches:          "No insights match that keyword. Try a different one.",
	session.ErrMissingKeyword:     "Please add a keyword: /search_insights <keyword>",
	session.ErrMissingQuestion:    "Please add a question: /ask_about_current <question>",
	session.ErrAnswerFailed:       "Sorry, I could not answer that right now. Please try again.",
}

// Navigator is the session navigation surface the dispatcher routes to.
type Navigator interface {
	ShowFirst(key string) (session.View, error)
	ShowLatest(key string) (session.View, error)
	Next(key string) (session.View, error)
	NextSearchResult(key string) (session.View, error)
	Search(key, keyword string) (session.View, error)
	Ask(ctx context.Context, key, question string) (*session.Answer, error)
}

type Conversation interface {
	Converse(ctx context.Context, message string) (string, error)
}

// Reply is what a chat transport sends back for one inbound message.
type Reply struct {
	Command  string                  `json:"command"`
	Text     string                  `json:"text"`
	Result   *insight.AnalysisResult `json:"result,omitempty"`
	Position *render.Position        `json:"position,omitempty"`
	Cached   bool                    `json:"cached,omitempty"`
	Code     string                  `json:"code"`
	Err      error                   `json:"-"`
}

type handlerFunc func(ctx context.Context, key, arg string) Reply

type Dispatcher struct {
	nav           Navigator
	conversation  Conversation
	botName       string
	maxMessageLen int
	commands      map[string]handlerFunc
}

// NewDispatcher builds the command router. botName is matched against an
// "@name" suffix on command tokens; maxMessageLen <= 0 disables the limit.
func NewDispatcher(nav Navigator, conversation Conversation, botName string, maxMessageLen int) *Dispatcher {
	d := &Dispatcher{
		nav:           nav,
		conversation:  conversation,
		botName:       strings.ToLower(strings.TrimPrefix(botName, "@")),
		maxMessageLen: maxMessageLen,
	}

	d.commands = map[string]handlerFunc{
		CmdShowInsights:     d.viewCommand(CmdShowInsights, nav.ShowFirst),
		CmdNextInsight:      d.viewCommand(CmdNextInsight, nav.Next),
		CmdLatestInsight:    d.viewCommand(CmdLatestInsight, nav.ShowLatest),
		CmdNextSearchResult: d.viewCommand(CmdNextSearchResult, nav.NextSearchResult),
		CmdSearchInsights:   d.handleSearch,
		CmdAskAboutCurrent:  d.handleAsk,
		CmdAbout:            staticReply(CmdAbout),
		CmdHelp:             staticReply(CmdHelp),
	}

	return d
}

// Dispatch routes one inbound message for a session and always returns a
// reply, including for errors.
func (d *Dispatcher) Dispatch(ctx context.Context, key, text string) Reply {
	reply := d.dispatch(ctx, key, text)

	metrics.CommandsTotal.WithLabelValues(reply.Command, reply.Code).Inc()
	if reply.Code != "ok" {
		logger.Debug("Command not completed",
			zap.String("session", key),
			zap.String("command", reply.Command),
			zap.String("code", reply.Code),
		)
	}

	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, key, text string) Reply {
	text = strings.TrimSpace(text)

	if d.maxMessageLen > 0 && utf8.RuneCountInString(text) > d.maxMessageLen {
		return Reply{
			Command: CmdConversation,
			Text:    fmt.Sprintf("Message is too long (max %d characters).", d.maxMessageLen),
			Code:    codeMessageTooLong,
		}
	}

	token, arg := ParseCommand(text, d.botName)
	if handler, ok := d.commands[token]; ok {
		return handler(ctx, key, arg)
	}

	return d.handleConversation(ctx, text)
}

// ParseCommand splits a message into a lower-cased command token and the rest
// of the line. An "@botName" suffix on the token is dropped when it names
// this bot (or when botName is empty). Non-command text yields an empty token.
func ParseCommand(text, botName string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	token, arg := text, ""
	if i := strings.IndexFunc(text, isSpace); i >= 0 {
		token, arg = text[:i], strings.TrimSpace(text[i:])
	}
	token = strings.ToLower(token)

	if at := strings.IndexByte(token, '@'); at >= 0 {
		if botName == "" || token[at+1:] == strings.ToLower(botName) {
			token = token[:at]
		}
	}

	return token, arg
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (d *Dispatcher) viewCommand(command string, op func(key string) (session.View, error)) handlerFunc {
	return func(_ context.Context, key, _ string) Reply {
		v, err := op(key)
		return viewReply(command, v, err)
	}
}

func (d *Dispatcher) handleSearch(_ context.Context, key, arg string) Reply {
	v, err := d.nav.Search(key, arg)
	return viewReply(CmdSearchInsights, v, err)
}

func (d *Dispatcher) handleAsk(ctx context.Context, key, arg string) Reply {
	answer, err := d.nav.Ask(ctx, key, arg)
	if err != nil {
		return errorReply(CmdAskAboutCurrent, err)
	}

	pos := position(answer.View)
	result := answer.View.Result
	return Reply{
		Command:  CmdAskAboutCurrent,
		Text:     answer.Text,
		Result:   &result,
		Position: &pos,
		Cached:   answer.Cached,
		Code:     session.Code(nil),
	}
}

func (d *Dispatcher) handleConversation(ctx context.Context, text string) Reply {
	if text == "" {
		return Reply{Command: CmdConversation, Text: helpText, Code: session.Code(nil)}
	}

	answer, err := d.conversation.Converse(ctx, text)
	if err != nil {
		logger.Warn("Conversation failed", zap.Error(err))
		return Reply{
			Command: CmdConversation,
			Text:    "Sorry, I could not reply right now. Please try again.",
			Code:    codeConversationFailed,
			Err:     err,
		}
	}

	return Reply{Command: CmdConversation, Text: answer, Code: session.Code(nil)}
}

func staticReply(command string) handlerFunc {
	return func(context.Context, string, string) Reply {
		return Reply{Command: command, Text: helpText, Code: session.Code(nil)}
	}
}

func viewReply(command string, v session.View, err error) Reply {
	if err != nil {
		return errorReply(command, err)
	}

	pos := position(v)
	result := v.Result
	return Reply{
		Command:  command,
		Text:     render.Card(result, pos),
		Result:   &result,
		Position: &pos,
		Code:     session.Code(nil),
	}
}

func errorReply(command string, err error) Reply {
	return Reply{
		Command: command,
		Text:    Message(err),
		Code:    session.Code(err),
		Err:     err,
	}
}

// Message returns the user-facing text for a navigation error.
func Message(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return "Something went wrong. Please try again."
}

func position(v session.View) render.Position {
	return render.Position{
		Index:   v.Index,
		Total:   v.Total,
		Match:   v.Match,
		Matches: v.Matches,
	}
}
