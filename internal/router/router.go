// Package router dispatches resolved intents to capability providers.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/session"
)

// Fixed answers.
const (
	AnswerNoted           = "C'est noté."
	AnswerNotedWithDate   = "C'est noté. J'ai détecté une date : %s."
	AnswerNotYetAvailable = "Cette fonctionnalité n'est pas encore disponible."
	AnswerNotUnderstood   = "Je n'ai pas bien compris votre demande. Pouvez-vous reformuler ?"
)

// ActionStatus is the outcome of a side-effect action.
type ActionStatus string

// Action statuses.
const (
	ActionExecuted            ActionStatus = "executed"
	ActionPendingConfirmation ActionStatus = "pending_confirmation"
	ActionFailed              ActionStatus = "failed"
)

// Action describes a side effect performed or proposed while answering.
type Action struct {
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Status      ActionStatus `json:"status"`
}

// EngineResult is the output of routing.
type EngineResult struct {
	Answer  string
	Sources []string
	Actions []Action
}

// AddResult is returned by the memory capability when storing text.
type AddResult struct {
	EventDate  *time.Time
	Expression string
}

// Answer is an answer with the snippets it was grounded on.
type Answer struct {
	Text    string
	Sources []string
}

// MemoryCapability stores and recalls personal memories.
type MemoryCapability interface {
	Add(ctx context.Context, text string) (AddResult, error)
	Query(ctx context.Context, question string) (Answer, error)
}

// RetrievalCapability answers questions from indexed documents.
type RetrievalCapability interface {
	Ask(ctx context.Context, question string) (Answer, error)
}

// AnswerCapability answers open-domain questions.
type AnswerCapability interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Router maps intents to capabilities. It performs no error recovery:
// capability failures are returned to the caller.
type Router struct {
	memory    MemoryCapability
	retrieval RetrievalCapability
	answerer  AnswerCapability
}

// New creates a router. Any capability may be nil, in which case its
// intents get the "not yet available" answer.
func New(memory MemoryCapability, retrieval RetrievalCapability, answerer AnswerCapability) *Router {
	return &Router{memory: memory, retrieval: retrieval, answerer: answerer}
}

// futureIntents are recognized but not served yet.
var futureIntents = map[intent.Type]bool{
	intent.MemoryUpdate:  true,
	intent.MemoryDelete:  true,
	intent.ScheduleEvent: true,
	intent.QuerySchedule: true,
	intent.CreateTask:    true,
	intent.QueryTasks:    true,
	intent.CompleteTask:  true,
	intent.AddGoal:       true,
	intent.QueryGoals:    true,
	intent.ExecuteAction: true,
}

// Route dispatches a non-meta intent.
func (r *Router) Route(ctx context.Context, res intent.Result, _ session.Context) (EngineResult, error) {
	switch res.Primary {
	case intent.MemoryAdd:
		if r.memory == nil {
			return notYetAvailable(), nil
		}
		added, err := r.memory.Add(ctx, res.ExtractedContent)
		if err != nil {
			return EngineResult{}, fmt.Errorf("memory add: %w", err)
		}
		if added.EventDate != nil && added.Expression != "" {
			return EngineResult{Answer: fmt.Sprintf(AnswerNotedWithDate, added.Expression)}, nil
		}
		return EngineResult{Answer: AnswerNoted}, nil

	case intent.MemoryQuery:
		if r.memory == nil {
			return notYetAvailable(), nil
		}
		ans, err := r.memory.Query(ctx, res.ExtractedContent)
		if err != nil {
			return EngineResult{}, fmt.Errorf("memory query: %w", err)
		}
		return EngineResult{Answer: ans.Text, Sources: ans.Sources}, nil

	case intent.RAGQuestion:
		if r.retrieval == nil {
			return notYetAvailable(), nil
		}
		ans, err := r.retrieval.Ask(ctx, res.ExtractedContent)
		if err != nil {
			return EngineResult{}, fmt.Errorf("retrieval ask: %w", err)
		}
		return EngineResult{Answer: ans.Text, Sources: ans.Sources}, nil

	case intent.GeneralQuestion, intent.Chitchat:
		if r.answerer == nil {
			return notYetAvailable(), nil
		}
		text, err := r.answerer.Ask(ctx, res.ExtractedContent)
		if err != nil {
			return EngineResult{}, fmt.Errorf("answer: %w", err)
		}
		return EngineResult{Answer: text}, nil
	}

	if futureIntents[res.Primary] {
		return notYetAvailable(), nil
	}
	return EngineResult{Answer: AnswerNotUnderstood}, nil
}

func notYetAvailable() EngineResult {
	return EngineResult{Answer: AnswerNotYetAvailable}
}
