package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/vizor/vizor-etl/internal/config"
	"github.com/vizor/vizor-etl/pkg/types"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Company    string     `json:"company"`
	MachineID  string     `json:"machine_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Status     string     `json:"status"`
	RiskLevel  string     `json:"risk_level"`
	RiskProb   float64    `json:"risk_prob"`
	Trend      string     `json:"trend"`
	NextProb   float64    `json:"next_prob"`
	Days       string     `json:"days"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against produced reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:company/machine"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests
	wg       sync.WaitGroup
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r types.DashboardReport) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	machine := r.Company + "/" + r.MachineID
	for _, rule := range e.rules {
		key := rule.Name + ":" + machine
		fires, value := evalCondition(rule.Condition, &r)

		e.mu.Lock()
		if fires {
			e.fire(rule, key, r, value, now)
		} else {
			e.resolve(rule, key, machine, now)
		}
	}
}

// fire records a firing alert unless the key is cooling down. Called with
// e.mu held; releases it.
func (e *Engine) fire(rule config.AlertRule, key string, r types.DashboardReport, value float64, now time.Time) {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
		e.mu.Unlock()
		return
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        fmt.Sprintf("%s:%s/%s:%d", rule.Name, r.Company, r.MachineID, now.UnixNano()),
		RuleName:  rule.Name,
		Company:   r.Company,
		MachineID: r.MachineID,
		Severity:  sev,
		Value:     value,
		Message: fmt.Sprintf("[%s] %s fired on %s/%s: %s (value %.2f, status %s, trend %s)",
			sev, rule.Name, r.Company, r.MachineID, rule.Condition, value, r.Status, r.Regression.Trend),
		Status:    r.Status,
		RiskLevel: r.RiskModel.RiskLevel,
		RiskProb:  r.RiskModel.Prob,
		Trend:     r.Regression.Trend,
		NextProb:  r.Regression.NextProb,
		Days:      r.RiskModel.Days,
		FiredAt:   now,
		State:     StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	alertCopy := *a
	e.mu.Unlock()

	slog.Warn("alerts: alert fired",
		"rule", rule.Name,
		"company", r.Company,
		"machine", r.MachineID,
		"value", value,
		"severity", sev,
	)
	e.dispatch(&alertCopy)
}

// resolve closes a firing alert. Called with e.mu held; releases it.
func (e *Engine) resolve(rule config.AlertRule, key, machine string, now time.Time) {
	a, ok := e.active[key]
	if !ok || a.State != StateFiring {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	slog.Info("alerts: alert resolved", "rule", rule.Name, "machine", machine)
	e.dispatch(&alertCopy)
}

func (e *Engine) dispatch(a *Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() { e.wg.Wait() }

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
