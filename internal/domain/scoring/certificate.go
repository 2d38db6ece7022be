package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// Rating bands shown on the certificate.
const (
	ratingExcellentMin = 85
	ratingFairMin      = 60
)

// Rating returns the certificate band for a safety index.
func Rating(index int) string {
	switch {
	case index >= ratingExcellentMin:
		return "EXCELENTE"
	case index >= ratingFairMin:
		return "REGULAR"
	default:
		return "EN RIESGO"
	}
}

// RenderCertificate formats a report as the plain-text insurance
// certificate.
func RenderCertificate(r model.SafetyReport, issuedAt time.Time, deviceID string) string {
	var b strings.Builder
	line := strings.Repeat("=", 48)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "CERTIFICADO DE SEGURIDAD VIAL")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Dispositivo:          %s\n", deviceID)
	fmt.Fprintf(&b, "Emitido:              %s\n", issuedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Safety Index:         %d/100 (%s)\n", r.SafetyIndex, Rating(r.SafetyIndex))
	fmt.Fprintf(&b, "Eventos críticos:     %d (x%d pts)\n", r.CriticalCount, r.PenaltyWeight)
	fmt.Fprintf(&b, "Bono de capacitación: +%d pts\n", r.EducationBonus)
	fmt.Fprintf(&b, "Descuento proyectado: %.2f %s\n", r.ProjectedDiscount, r.Currency)
	fmt.Fprintf(&b, "Tokens:               %d (capacitación %d, conducción %d)\n",
		r.TokenBalance, r.EducationTokens, r.SafetyTokens)
	fmt.Fprintln(&b, line)
	return b.String()
}
