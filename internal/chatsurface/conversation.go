package chatsurface

import (
	"fmt"
	"strings"
	"sync"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// TranscriptQuestion labels the response row that carries a full chat transcript.
	TranscriptQuestion = "Retrospective Chat Session"

	advanceHint = "Type 'next' when you're ready for the next question."
)

var advanceWords = map[string]bool{
	"next":          true,
	"next question": true,
	"continue":      true,
	"go on":         true,
}

func isAdvance(msg string) bool {
	return advanceWords[strings.ToLower(strings.TrimSpace(msg))]
}

type turn struct {
	Role    string
	Content string
}

type answered struct {
	Question string
	Answer   string
	Reply    string
}

// conversation tracks one participant's progress through the questions.
// current == len(questions) once the participant finished.
type conversation struct {
	mu          sync.Mutex
	participant string
	questions   []string
	current     int
	answers     []answered
	history     []turn
}

func newConversation(participant string, questions []string) *conversation {
	c := &conversation{participant: participant, questions: questions}
	c.say(roleAssistant, c.greeting())
	return c
}

func (c *conversation) greeting() string {
	var list strings.Builder
	for i, q := range c.questions {
		fmt.Fprintf(&list, "%d. %s\n", i+1, q)
	}
	return fmt.Sprintf("Hello %s! I will be your retrospective assistant. I hope everything went well in the sprint and you are ready to share your thoughts. During our conversation, I will ask you the following questions:\n\n%s\nLet's start with the first question.\n\n%s",
		c.participant, list.String(), c.questionLine())
}

func (c *conversation) completed() bool { return c.current >= len(c.questions) }

func (c *conversation) currentQuestion() string {
	if c.completed() {
		return ""
	}
	return c.questions[c.current]
}

func (c *conversation) questionLine() string {
	return fmt.Sprintf("**Question %d:** %s", c.current+1, c.currentQuestion())
}

func (c *conversation) say(role, content string) {
	c.history = append(c.history, turn{Role: role, Content: content})
}

// advance moves to the next question and reports whether the conversation
// just finished.
func (c *conversation) advance() bool {
	if c.completed() {
		return false
	}
	c.current++
	return c.completed()
}

// recordAnswer stores msg for the current question. Answering the same
// question again replaces the earlier answer.
func (c *conversation) recordAnswer(msg string) {
	q := c.currentQuestion()
	if n := len(c.answers); n > 0 && c.answers[n-1].Question == q {
		c.answers[n-1].Answer = msg
		c.answers[n-1].Reply = ""
		return
	}
	c.answers = append(c.answers, answered{Question: q, Answer: msg})
}

func (c *conversation) setReply(reply string) {
	if n := len(c.answers); n > 0 {
		c.answers[n-1].Reply = reply
	}
}

// transcript renders the answers and the full exchange as markdown.
func (c *conversation) transcript() string {
	var b strings.Builder
	for _, a := range c.answers {
		fmt.Fprintf(&b, "**Question:** %s\n\n", a.Question)
		fmt.Fprintf(&b, "**User Response:** %s\n\n", a.Answer)
		if a.Reply != "" {
			fmt.Fprintf(&b, "**Assistant Response:** %s\n\n", a.Reply)
		}
		b.WriteString("---\n\n")
	}
	b.WriteString("**Full Conversation:**\n\n")
	for _, t := range c.history {
		role := "Assistant"
		if t.Role == roleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "**%s:** %s\n\n", role, t.Content)
	}
	return b.String()
}
