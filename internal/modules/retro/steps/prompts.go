package steps

import (
	"fmt"
	"strings"
)

const participantSeparator = "\n\n---\n\n"

const refineSystemPrompt = `You are an expert communicator who turns a participant's fragmented retrospective answers into one coherent first-person speech.
The speech must flow naturally, be well structured and keep the participant's voice and perspective.
Do not list the answers one by one; weave them into a narrative.
Output only the speech itself, with no preamble, headings or closing remarks.`

const topicsSystemPrompt = `You analyse the combined responses of all participants of a retrospective meeting.
Identify a small number (5 to 7) of broad, high-level discussion topics based on the challenges and negatives mentioned.
Each topic should synthesise several specific points into an overarching theme that represents a problem, challenge or systemic area for improvement.
Do not list individual complaints. If several people mention tooling issues, a topic might be "Tooling and Infrastructure Challenges".
Avoid topics drawn from purely positive statements or statements indicating no issues, unless they seem to hide a real problem.
Topics must be short, use simple words and be suitable for a meeting agenda.
Respond with a JSON array of strings and nothing else, for example ["Topic one", "Topic two"].`

const relevanceSystemPrompt = `You are an expert in textual context and relevance.
Decide whether the participant's text discusses the given discussion topic.
If it does, extract the exact sentences or key phrases that discuss the topic, verbatim or nearly verbatim.
Respond with a single JSON object and nothing else:
{"is_relevant": true, "snippets": ["...", "..."]} when relevant, or {"is_relevant": false, "snippets": []} when not.`

const summarySystemPrompt = `You analyse retrospective feedback and write a project summary.
Identify overarching themes, sort feedback into what went well and what could be improved, and propose actionable items.
Do not include greetings or welcoming openings; focus strictly on the summary content.
Respond with a single JSON object and nothing else, with exactly these keys:
"title" (string),
"overview", "key_themes", "positives", "improvements" (strings containing Markdown, for example "- Theme 1: description\n- Theme 2: description"),
"action_items" (array of objects, each with "description" and "priority" strings; priority is High, Medium or Low).`

const chatReplySystemPrompt = `You facilitate a retrospective conversation. The participant just answered a question.
Reply with one or two short, warm sentences that acknowledge the answer without judging it.
Do not ask a new question; the next question is shown separately.`

type qaPair struct {
	Question string
	Answer   string
}

func refineUserPrompt(participantName string, pairs []qaPair) string {
	var b strings.Builder
	if strings.TrimSpace(participantName) != "" {
		fmt.Fprintf(&b, "Participant: %s\n\n", participantName)
	}
	b.WriteString("Here are the responses:\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "- Question: %s\n  Answer: %s\n", strings.TrimSpace(p.Question), strings.TrimSpace(p.Answer))
	}
	return b.String()
}

func topicsUserPrompt(allText string) string {
	return "Participant responses:\n\n" + allText
}

func relevanceUserPrompt(participantText, topic string) string {
	return fmt.Sprintf("Discussion topic: %q\n\nParticipant text:\n\n%s", topic, participantText)
}

func summaryUserPrompt(joined string) string {
	return "Participant responses:\n\n" + joined
}

// ChatReplyPrompts exposes the acknowledgement prompt used by the chat surface.
func ChatReplyPrompts(question, answer string) (system, user string) {
	return chatReplySystemPrompt, fmt.Sprintf("Question: %s\nAnswer: %s", question, answer)
}
