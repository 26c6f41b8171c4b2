// Package compute derives the analytical blocks of a DashboardReport.
//
// trend.go fits an ordinary least-squares line to the per-row failure
// probabilities of an export (x = row index, not timestamp) and projects the
// current and next-step probability, each clamped to [0, 99]:
//
//	slope     = (nΣxy − ΣxΣy) / (nΣx² − (Σx)²)
//	intercept = (Σy − slope·Σx) / n
//
// risk.go classifies the current Sample into a maintenance window, risk level,
// cause and recommendation. alert.go derives the dashboard banner with its own
// ladder; the two classifications are independent and may disagree.
//
// Every function here is pure.
package compute
