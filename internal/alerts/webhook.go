package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a)
		case "teams":
			err = e.sendTeams(url, a)
		case "http":
			err = e.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
			)
		}
	}
}

// headline names the rule and machine an alert belongs to.
func headline(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("[RESOLVED] %s on %s/%s", a.RuleName, a.Company, a.MachineID)
	}
	return fmt.Sprintf("%s %s on %s/%s", severityLabel(a.Severity), a.RuleName, a.Company, a.MachineID)
}

// facts lists the report readings carried by a as label/value pairs.
func facts(a *Alert) [][2]string {
	return [][2]string{
		{"Machine", a.Company + "/" + a.MachineID},
		{"Status", a.Status},
		{"Risk", fmt.Sprintf("%s (%.0f%%)", a.RiskLevel, a.RiskProb)},
		{"Trend", fmt.Sprintf("%s, next %.0f%%", a.Trend, a.NextProb)},
		{"Maintenance", a.Days},
		{"Value", fmt.Sprintf("%.2f", a.Value)},
	}
}

func (e *Engine) sendSlack(url string, a *Alert) error {
	var b strings.Builder
	b.WriteString("*" + headline(a) + "*")
	if a.State != StateResolved {
		for _, f := range facts(a)[1:] {
			fmt.Fprintf(&b, "\n>%s: %s", f[0], f[1])
		}
	}
	body, _ := json.Marshal(map[string]string{"text": b.String()})
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, a *Alert) error {
	var list []map[string]string
	for _, f := range facts(a) {
		list = append(list, map[string]string{"name": f[0], "value": f[1]})
	}
	section := map[string]interface{}{
		"activityTitle": headline(a),
		"facts":         list,
		"markdown":      true,
	}
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity, a.State),
		"summary":    headline(a),
		"title":      fmt.Sprintf("Vizor Alert: %s (%s)", a.RuleName, a.State),
		"sections":   []map[string]interface{}{section},
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendHTTP(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s, state string) string {
	if state == StateResolved {
		return "2EB67D"
	}
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
