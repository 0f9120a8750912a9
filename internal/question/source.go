package question

import (
	"context"
	"log"
	"math/rand"
	"strings"

	"team-pulse/internal/llm"
)

// Source picks the next question of the cycle.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Bank draws uniformly from the built-in question list.
type Bank struct {
	questions []string
	intn      func(n int) int
}

func NewBank() *Bank {
	return &Bank{questions: bank, intn: rand.Intn}
}

func (b *Bank) Next(context.Context) (string, error) {
	return b.questions[b.intn(len(b.questions))], nil
}

const llmGuard = "\nquestion must not include anything offensive\nanswer format: <question>"

// LLMSource asks a language model for a question and falls back when the
// model fails or answers with nothing usable.
type LLMSource struct {
	client   llm.Client
	prompt   string
	fallback Source
}

func NewLLMSource(client llm.Client, prompt string, fallback Source) *LLMSource {
	return &LLMSource{client: client, prompt: prompt, fallback: fallback}
}

func (s *LLMSource) Next(ctx context.Context) (string, error) {
	resp, err := s.client.Generate(ctx, []llm.Message{{Role: "user", Content: s.prompt + llmGuard}})
	if err != nil {
		log.Printf("⚠️ question generation failed, using bank: %v", err)
		return s.fallback.Next(ctx)
	}
	q := cleanGenerated(resp.Content)
	if q == "" {
		log.Printf("⚠️ question generation returned nothing usable, using bank")
		return s.fallback.Next(ctx)
	}
	log.Printf("🤖 question generated by %s (%d tokens)", resp.Model, resp.TotalTokens)
	return q, nil
}

func cleanGenerated(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.Trim(s, `"' `)
	return s
}
