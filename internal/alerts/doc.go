// Package alerts evaluates rules against every produced report and delivers
// webhook notifications to Slack, Teams or generic HTTP targets when a rule
// fires or resolves. Alerts are keyed by rule and company/machine.
package alerts
