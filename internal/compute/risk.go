package compute

import (
	"math"

	"github.com/vizor/vizor-etl/internal/telemetry"
	"github.com/vizor/vizor-etl/pkg/types"
)

// Weights of the software stress score.
const (
	weightCPU = 0.6
	weightRAM = 0.4
)

// Probability thresholds of the maintenance and risk ladders.
const (
	ThresholdImmediate = 80.0
	ThresholdWeek      = 60.0
	ThresholdFortnight = 40.0

	// ThresholdOverload is the software stress above which the cause is
	// software overload.
	ThresholdOverload = 85.0

	// ThresholdThermal separates thermal stress from imminent hardware
	// failure on high risk.
	ThresholdThermal = 80.0
)

// Risk levels for RiskModel.RiskLevel.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Maintenance windows for RiskModel.Days.
const (
	DaysImmediate = "IMEDIATA"
	DaysWeek      = "7 dias"
	DaysFortnight = "15 dias"
	DaysDefault   = "45+ dias"
)

// Cause and recommendation texts.
const (
	CauseThermal  = "Estresse Térmico (Perigo)"
	RecThermal    = "Verificar Arrefecimento"
	CauseHardware = "Falha de Hardware Iminente"
	RecHardware   = "Agendar Troca de Player"
	CauseLimit    = "Operação em Limite Térmico"
	RecLimit      = "Monitorar temperatura ambiente"
	CauseOverload = "Sobrecarga de Software"
	RecOverload   = "Reiniciar ou Otimizar Conteúdo"
	CauseWear     = "Desgaste Natural"
	RecMonitoring = "Monitoramento Padrão"
)

// Stress returns floor(0.6·cpu + 0.4·ram). It is not capped.
func Stress(cpu, ram float64) float64 {
	return math.Floor(float64(weightCPU*cpu) + float64(weightRAM*ram))
}

// Assess classifies the current sample. Rules are evaluated in priority
// order and the first match wins.
func Assess(s telemetry.Sample) types.RiskModel {
	prob := telemetry.FailureProbability(s.Temperature, s.Disk)
	stress := Stress(s.CPU, s.RAM)
	urgent := s.IsCritical() || prob > ThresholdImmediate

	rm := types.RiskModel{
		Prob:      prob,
		Stress:    stress,
		Days:      maintenanceWindow(urgent, prob),
		Cause:     CauseWear,
		Rec:       RecMonitoring,
		RiskLevel: RiskLow,
	}

	switch {
	case urgent:
		rm.RiskLevel = RiskHigh
		if s.Temperature > ThresholdThermal {
			rm.Cause, rm.Rec = CauseThermal, RecThermal
		} else {
			rm.Cause, rm.Rec = CauseHardware, RecHardware
		}
	case s.IsAlert() || prob > ThresholdWeek:
		rm.RiskLevel = RiskMedium
		rm.Cause, rm.Rec = CauseLimit, RecLimit
	case stress > ThresholdOverload:
		rm.Cause, rm.Rec = CauseOverload, RecOverload
	}
	return rm
}

func maintenanceWindow(urgent bool, prob float64) string {
	switch {
	case urgent:
		return DaysImmediate
	case prob > ThresholdWeek:
		return DaysWeek
	case prob > ThresholdFortnight:
		return DaysFortnight
	default:
		return DaysDefault
	}
}
