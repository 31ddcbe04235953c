package monitoring

import (
	"context"
	"time"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
)

const (
	severityWindowDays = 7
	activityWindowDays = 30
	recentAlertsLimit  = 10
)

// Summary is the dashboard view over the caller's patients.
type Summary struct {
	TotalPatients       int                       `json:"totalPatients"`
	ActiveAlerts        int                       `json:"activeAlerts"`
	TotalVitals         int                       `json:"totalVitals"`
	PatientsByRiskLevel map[patient.RiskLevel]int `json:"patientsByRiskLevel"`
	// AlertsBySeverity covers the last 7 days, AlertsByType the last 30.
	AlertsBySeverity map[alert.Severity]int `json:"alertsBySeverity"`
	AlertsByType     map[alert.Metric]int   `json:"alertsByType"`
	RecentAlerts     []*alert.Alert         `json:"recentAlerts"`
	GeneratedAt      time.Time              `json:"generatedAt"`
}

// Analytics aggregates patients, alerts and readings. Doctors get figures
// for the patients they attend; administrators for everyone. Deactivated
// patients are left out of patient counts.
func (s *Service) Analytics(ctx context.Context, actor auth.Actor) (*Summary, error) {
	doctorID, err := doctorScope(actor)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sum := &Summary{
		PatientsByRiskLevel: map[patient.RiskLevel]int{
			patient.RiskLow: 0, patient.RiskMedium: 0, patient.RiskHigh: 0, patient.RiskCritical: 0,
		},
		AlertsBySeverity: map[alert.Severity]int{
			alert.SeverityLow: 0, alert.SeverityMedium: 0, alert.SeverityHigh: 0, alert.SeverityCritical: 0,
		},
		AlertsByType: map[alert.Metric]int{},
		GeneratedAt:  now,
	}

	byLevel, err := s.patients.CountByRiskLevel(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	for level, n := range byLevel {
		sum.PatientsByRiskLevel[level] += n
		sum.TotalPatients += n
	}

	active := alert.StatusActive
	activeFilter := alert.ListFilter{DoctorID: doctorID, Status: &active, Limit: recentAlertsLimit}
	recent, total, err := s.alerts.List(ctx, activeFilter)
	if err != nil {
		return nil, err
	}
	sum.ActiveAlerts = total
	sum.RecentAlerts = recent
	if sum.RecentAlerts == nil {
		sum.RecentAlerts = []*alert.Alert{}
	}

	bySeverity, err := s.alerts.CountBy(ctx, alert.ListFilter{
		DoctorID: doctorID,
		Since:    now.AddDate(0, 0, -severityWindowDays),
	}, alert.GroupBySeverity)
	if err != nil {
		return nil, err
	}
	for k, n := range bySeverity {
		sum.AlertsBySeverity[alert.Severity(k)] += n
	}

	byMetric, err := s.alerts.CountBy(ctx, alert.ListFilter{
		DoctorID: doctorID,
		Since:    now.AddDate(0, 0, -activityWindowDays),
	}, alert.GroupByMetric)
	if err != nil {
		return nil, err
	}
	for k, n := range byMetric {
		sum.AlertsByType[alert.Metric(k)] += n
	}

	sum.TotalVitals, err = s.vitals.Count(ctx, vitals.CountFilter{
		DoctorID: doctorID,
		From:     now.AddDate(0, 0, -activityWindowDays),
		To:       now,
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}
