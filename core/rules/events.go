package rules

import (
	"context"
	"time"
)

// RuleEventType names an event emitted by a RuleSet.
type RuleEventType string

// Event types emitted by a RuleSet.
const (
	RuleAdded           RuleEventType = "rule.added"
	RuleRemoved         RuleEventType = "rule.removed"
	RuleCompileFailed   RuleEventType = "rule.compile.failed"
	EvaluationCompleted RuleEventType = "evaluation.completed"
)

// RuleEvent describes something that happened to a rule set.
type RuleEvent struct {
	Type      RuleEventType  `json:"type"`
	RuleID    string         `json:"ruleId,omitempty"`
	RuleName  string         `json:"ruleName,omitempty"`
	Error     *string        `json:"error,omitempty"`
	Features  int            `json:"features,omitempty"`
	Matches   map[string]int `json:"matches,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  *time.Duration `json:"duration,omitempty"`
}

// EventCallback receives rule set events.
type EventCallback func(ctx context.Context, event RuleEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	ID          string        `json:"id"`
	Event       RuleEventType `json:"event"`
	Label       string        `json:"label,omitempty"`
	Unsubscribe func()        `json:"-"`
}

func newEvent(eventType RuleEventType, rule *Rule, err error, start time.Time) RuleEvent {
	event := RuleEvent{Type: eventType, Timestamp: time.Now()}
	if rule != nil {
		event.RuleID = rule.ID
		event.RuleName = rule.Name
	}
	if err != nil {
		msg := err.Error()
		event.Error = &msg
	}
	if !start.IsZero() {
		d := event.Timestamp.Sub(start)
		event.Duration = &d
	}
	return event
}

// emit publishes event on the rule set's bus.
func (rs *RuleSet) emit(event RuleEvent) {
	if rs.bus != nil {
		rs.bus.Emit(string(event.Type), event)
	}
}

// Subscribe registers cb for events of the given type and returns a
// subscription ID for Unsubscribe.
func (rs *RuleSet) Subscribe(event RuleEventType, label string, cb EventCallback) string {
	rs.subMu.Lock()
	defer rs.subMu.Unlock()

	unsubscribe := rs.bus.Subscribe(string(event), func(ctx context.Context, e RuleEvent) error {
		return cb(ctx, e)
	})
	info := &SubscriptionInfo{
		ID:          newID(),
		Event:       event,
		Label:       label,
		Unsubscribe: unsubscribe,
	}
	rs.subscriptions[info.ID] = info
	return info.ID
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (rs *RuleSet) Unsubscribe(id string) {
	rs.subMu.Lock()
	defer rs.subMu.Unlock()
	if info := rs.subscriptions[id]; info != nil {
		info.Unsubscribe()
		delete(rs.subscriptions, id)
	}
}

// Subscriptions returns the registered subscriptions.
func (rs *RuleSet) Subscriptions() []SubscriptionInfo {
	rs.subMu.RLock()
	defer rs.subMu.RUnlock()
	out := make([]SubscriptionInfo, 0, len(rs.subscriptions))
	for _, info := range rs.subscriptions {
		out = append(out, *info)
	}
	return out
}
