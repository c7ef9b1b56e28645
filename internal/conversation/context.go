// Package conversation keeps the bounded interviewer/assistant history shared
// by the analyzer and the answer orchestrator.
package conversation

import (
	"strings"
	"sync"
)

// DefaultCapacity keeps the last four question/answer pairs.
const DefaultCapacity = 8

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleAssistant   Role = "assistant"
)

// Turn is a single entry in the history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Context is a FIFO of turns capped at a fixed capacity. All methods are safe
// for concurrent use.
type Context struct {
	mu       sync.Mutex
	capacity int
	turns    []Turn
}

func New(capacity int) *Context {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Context{capacity: capacity}
}

// Append adds turns in order under one lock, evicting the oldest once the cap
// is exceeded.
func (c *Context) Append(turns ...Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
	if over := len(c.turns) - c.capacity; over > 0 {
		kept := make([]Turn, c.capacity)
		copy(kept, c.turns[over:])
		c.turns = kept
	}
}

// Turns returns a copy of the history, oldest first.
func (c *Context) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Clear drops all turns. Used on explicit session clear.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// Format renders the history as a Q:/A: transcript for prompts.
func (c *Context) Format() string {
	turns := c.Turns()
	var sb strings.Builder
	for _, t := range turns {
		switch t.Role {
		case RoleInterviewer:
			sb.WriteString("Q: ")
		case RoleAssistant:
			sb.WriteString("A: ")
		default:
			sb.WriteString(string(t.Role) + ": ")
		}
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
