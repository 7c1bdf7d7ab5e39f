package breaker

import "time"

// TaskMetrics is the per-task bookkeeping. Counters only grow within
// a task's life; force-stop deletes the whole record.
type TaskMetrics struct {
	SessionID       string
	CallCount       int
	EscalationCount int
	TotalCost       float64
	LastActivity    time.Time

	// responses holds the 500-character prefixes of recent responses
	// for repetition detection.
	responses []string
	// agents is the recent agent sequence for ping-pong detection.
	agents []string
}

// SessionMetrics aggregates across a session's tasks.
type SessionMetrics struct {
	TotalCost float64
	TaskCount int
}

// TaskStatus is a point-in-time view of one task for status reports.
type TaskStatus struct {
	TaskID          string    `json:"task_id"`
	SessionID       string    `json:"session_id"`
	CallCount       int       `json:"call_count"`
	EscalationCount int       `json:"escalation_count"`
	TotalCost       float64   `json:"total_cost"`
	LastActivity    time.Time `json:"last_activity"`
	Stale           bool      `json:"stale"`
}

// SessionStatus is a point-in-time view of one session.
type SessionStatus struct {
	SessionID string  `json:"session_id"`
	TotalCost float64 `json:"total_cost"`
	TaskCount int     `json:"task_count"`
}

// Snapshot is the breaker's full observable state.
type Snapshot struct {
	State     State           `json:"state"`
	DailyCost float64         `json:"daily_cost"`
	DailyDate string          `json:"daily_date"`
	Tasks     []TaskStatus    `json:"tasks"`
	Sessions  []SessionStatus `json:"sessions"`
}

func (t *TaskMetrics) appendResponse(prefix string) {
	t.responses = append(t.responses, prefix)
	if len(t.responses) > responseHistorySize {
		t.responses = t.responses[len(t.responses)-responseHistorySize:]
	}
}

func (t *TaskMetrics) appendAgent(agent string) {
	t.agents = append(t.agents, agent)
	if len(t.agents) > agentHistorySize {
		t.agents = t.agents[len(t.agents)-agentHistorySize:]
	}
}

// isPingPong reports an A-B-A-B alternation over the last four
// entries of the agent sequence. Longer cycles (A-B-C-A-B-C) are
// deliberately not detected.
func isPingPong(agents []string) bool {
	if len(agents) < 4 {
		return false
	}
	last := agents[len(agents)-4:]
	return last[0] == last[2] && last[1] == last[3] && last[0] != last[1]
}
