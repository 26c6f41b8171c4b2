package types

// Summarized machine status values for DashboardReport.Status.
const (
	StatusCritical = "critico"
	StatusAlert    = "alerta"
	StatusOK       = "ok"
)

// DashboardReport is the single document produced per telemetry export.
type DashboardReport struct {
	MachineID  string     `json:"machine_id"`
	Company    string     `json:"company"`
	Status     string     `json:"status"`
	LastUpdate string     `json:"last_update"`
	RawMetrics RawMetrics `json:"raw_metrics"`
	UI         UIState    `json:"ui"`
	RiskModel  RiskModel  `json:"risk_model"`
	Medians    Medians    `json:"medianas"`
	Regression Regression `json:"regressao_risco"`
	History    History    `json:"historico_7d"`
}

// RawMetrics holds the current readings formatted for display.
type RawMetrics struct {
	CPU       string  `json:"cpu"`   // "NN.N%"
	RAM       string  `json:"ram"`   // "NN.N%"
	Disk      string  `json:"disco"` // "NN.N%"
	Temp      string  `json:"temp"`  // "NN.N°C"
	Uptime    string  `json:"uptime"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UIState drives the alert banner of the dashboard.
type UIState struct {
	Severity string `json:"severity"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// RiskModel is the heuristic classification of the current reading.
type RiskModel struct {
	Prob      float64 `json:"prob"`
	Stress    float64 `json:"stress"`
	Days      string  `json:"days"`
	Cause     string  `json:"cause"`
	Rec       string  `json:"rec"`
	RiskLevel string  `json:"riskLevel"`
}

// MetricMedians is one window's medians.
type MetricMedians struct {
	CPU  float64 `json:"cpu"`
	RAM  float64 `json:"ram"`
	Disk float64 `json:"disco"`
	Temp float64 `json:"temp"`
}

// Medians groups the day and week windows.
type Medians struct {
	Day  MetricMedians `json:"dia"`
	Week MetricMedians `json:"semanal"`
}

// Regression is the least-squares trend over per-row failure probability.
type Regression struct {
	Slope       float64 `json:"inclinacao"`
	Intercept   float64 `json:"intercepto"`
	Trend       string  `json:"tendencia"`
	CurrentProb float64 `json:"prob_atual_regressao"`
	NextProb    float64 `json:"prob_proxima_regressao"`
}

// History is the per-day median series over the last 7 days. All slices have
// the same length as Labels.
type History struct {
	Labels      []string  `json:"labels"`
	CPU         []float64 `json:"cpu"`
	RAM         []float64 `json:"ram"`
	Disk        []float64 `json:"disco"`
	Temp        []float64 `json:"temp"`
	FailureProb []float64 `json:"prob_falha"`
}
