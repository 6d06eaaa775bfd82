package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Mode tells whether a prompt starts a new statement or edits the current one.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeRefine   Mode = "refine"
)

// Prompt is a fixed instruction plus the schema context and the user turn.
type Prompt struct {
	Mode        Mode
	Instruction string
	Context     string
	User        string
}

// ModelClient is the only view the resolver has of a language model. It
// returns the model's text verbatim; callers sanitize it.
type ModelClient interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

const (
	generationInstruction = "You are an expert SQL assistant. " +
		"Use ONLY the provided schema info to write correct SQL queries. " +
		"Always return the SQL query only."
	refinementInstruction = "You are an expert SQL assistant. " +
		"You will refine or update the existing SQL query based on the user's new request. " +
		"Always return the updated SQL query only."
)

func GenerationPrompt(schemaContext, question string) Prompt {
	return Prompt{
		Mode:        ModeGenerate,
		Instruction: generationInstruction,
		Context:     schemaContext,
		User:        fmt.Sprintf("User question: %s\nGenerate SQL for it.", question),
	}
}

func RefinementPrompt(schemaContext, currentSQL, request string) Prompt {
	return Prompt{
		Mode:        ModeRefine,
		Instruction: refinementInstruction,
		Context:     schemaContext,
		User: fmt.Sprintf(
			"Current SQL:\n%s\n\nUser refinement: %s\n\nNow update the SQL accordingly.",
			currentSQL,
			request,
		),
	}
}

// SchemaMessage is the second system message carrying retrieved schema text.
func (p Prompt) SchemaMessage() string {
	return "Schema info:\n" + p.Context
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p Prompt) messages() []message {
	return []message{
		{Role: "system", Content: p.Instruction},
		{Role: "system", Content: p.SchemaMessage()},
		{Role: "user", Content: p.User},
	}
}

type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func New(cfg Config) (ModelClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	case ProviderOllama:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
