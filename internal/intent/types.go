// Package intent classifies user utterances into typed intents.
package intent

import "strings"

// Type is the classified purpose of one utterance.
type Type string

// Intent kinds, as they appear on the wire.
const (
	MemoryAdd       Type = "memory_add"
	MemoryQuery     Type = "memory_query"
	MemoryUpdate    Type = "memory_update"
	MemoryDelete    Type = "memory_delete"
	ScheduleEvent   Type = "schedule_event"
	QuerySchedule   Type = "query_schedule"
	CreateTask      Type = "create_task"
	QueryTasks      Type = "query_tasks"
	CompleteTask    Type = "complete_task"
	RAGQuestion     Type = "rag_question"
	GeneralQuestion Type = "general_question"
	AddGoal         Type = "add_goal"
	QueryGoals      Type = "query_goals"
	ExecuteAction   Type = "execute_action"
	Correction      Type = "correction"
	Confirmation    Type = "confirmation"
	Rejection       Type = "rejection"
	Chitchat        Type = "chitchat"
	Unknown         Type = "unknown"
)

// AllTypes lists every intent kind in declaration order.
var AllTypes = []Type{
	MemoryAdd, MemoryQuery, MemoryUpdate, MemoryDelete,
	ScheduleEvent, QuerySchedule,
	CreateTask, QueryTasks, CompleteTask,
	RAGQuestion, GeneralQuestion,
	AddGoal, QueryGoals,
	ExecuteAction,
	Correction, Confirmation, Rejection,
	Chitchat, Unknown,
}

var typeIndex = func() map[string]Type {
	m := make(map[string]Type, len(AllTypes))
	for _, t := range AllTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseType resolves a wire value. Unrecognized values return (Unknown, false).
func ParseType(s string) (Type, bool) {
	t, ok := typeIndex[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Unknown, false
	}
	return t, true
}

// IsMeta reports whether t refers to the assistant's own prior turn
// rather than introducing new content.
func (t Type) IsMeta() bool {
	return t == Confirmation || t == Rejection || t == Correction
}

// Priority is the urgency the classifier attached to an utterance.
type Priority string

// Priority levels.
const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Entities holds named slots extracted from an utterance. Nil means absent.
type Entities struct {
	Person    *string `json:"person,omitempty"`
	Location  *string `json:"location,omitempty"`
	Time      *string `json:"time,omitempty"`
	Duration  *string `json:"duration,omitempty"`
	Object    *string `json:"object,omitempty"`
	Task      *string `json:"task,omitempty"`
	Frequency *string `json:"frequency,omitempty"`
}

// slot returns a pointer to the field for a slot name, or nil.
func (e *Entities) slot(name string) **string {
	switch name {
	case "person":
		return &e.Person
	case "location":
		return &e.Location
	case "time":
		return &e.Time
	case "duration":
		return &e.Duration
	case "object":
		return &e.Object
	case "task":
		return &e.Task
	case "frequency":
		return &e.Frequency
	}
	return nil
}

// IsEmpty reports whether no slot is set.
func (e Entities) IsEmpty() bool {
	return e.Person == nil && e.Location == nil && e.Time == nil &&
		e.Duration == nil && e.Object == nil && e.Task == nil && e.Frequency == nil
}

// Result is the validated output of classification.
type Result struct {
	Primary          Type     `json:"primary"`
	Confidence       float64  `json:"confidence"`
	Secondary        *Type    `json:"secondary,omitempty"`
	ExtractedContent string   `json:"extractedContent"`
	Entities         Entities `json:"entities"`
	Priority         Priority `json:"priority"`
}

// unknownResult is returned for empty input and unmatched fallback input.
func unknownResult(text string) Result {
	return Result{
		Primary:          Unknown,
		Confidence:       1.0,
		ExtractedContent: text,
		Priority:         PriorityLow,
	}
}
