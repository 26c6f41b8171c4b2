package compute

import (
	"github.com/vizor/vizor-etl/internal/telemetry"
	"github.com/vizor/vizor-etl/pkg/types"
)

// Banner severities for UIState.Severity.
const (
	SeverityCritical = "CRITICO"
	SeverityAlert    = "ALERTA"
	SeverityInfo     = "INFO"
)

// Banner ladder thresholds.
const (
	critCPU  = 90.0
	critRAM  = 90.0
	critTemp = 75.0
	warnCPU  = 70.0
	warnRAM  = 70.0
)

// Message thresholds, checked in this order.
const (
	msgCPU  = 80.0
	msgRAM  = 80.0
	msgDisk = 90.0
	msgTemp = 75.0
)

var (
	uiNormal = types.UIState{
		Severity: SeverityInfo,
		Color:    "green",
		Icon:     "check-circle",
		Title:    "Operação Normal",
		Message:  "Monitoramento ativo. Parâmetros estáveis.",
		Action:   "Nenhuma ação necessária",
	}
	uiAlert = types.UIState{
		Severity: SeverityAlert,
		Color:    "yellow",
		Icon:     "alert-circle",
		Title:    "Atenção Requerida",
		Action:   "Verificar processos ou limpar cache",
	}
	uiCritical = types.UIState{
		Severity: SeverityCritical,
		Color:    "red",
		Icon:     "alert-triangle",
		Action:   "Intervenção Imediata / Reboot Forçado",
	}
)

// UIAlert derives the dashboard banner for the current sample of machineID.
func UIAlert(s telemetry.Sample, machineID string) types.UIState {
	switch {
	case s.IsCritical() || s.CPU > critCPU || s.RAM > critRAM || s.Temperature > critTemp:
		ui := uiCritical
		ui.Title = "Falha Crítica em " + machineID
		ui.Message = violation(s)
		return ui
	case s.IsAlert() || s.CPU > warnCPU || s.RAM > warnRAM:
		ui := uiAlert
		ui.Message = violation(s)
		return ui
	default:
		return uiNormal
	}
}

// violation names the first exceeded message threshold.
func violation(s telemetry.Sample) string {
	switch {
	case s.CPU > msgCPU:
		return "Uso de processador extremamente alto."
	case s.RAM > msgRAM:
		return "Memória RAM no limite."
	case s.Disk > msgDisk:
		return "Disco quase cheio. Risco de travamento."
	case s.Temperature > msgTemp:
		return "Temperatura está muito alta!."
	default:
		return "Hardware com valores elevados."
	}
}
