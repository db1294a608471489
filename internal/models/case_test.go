package models

import (
	"testing"
	"time"
)

func TestMonitoringDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hourAgo := now.Add(-time.Hour)
	minuteAgo := now.Add(-time.Minute)

	tests := []struct {
		name string
		m    Monitoring
		want bool
	}{
		{"disabled", Monitoring{Enabled: false}, false},
		{"never checked", Monitoring{Enabled: true, Frequency: FrequencyDaily}, true},
		{"hourly elapsed", Monitoring{Enabled: true, Frequency: FrequencyHourly, LastCheckedAt: &hourAgo}, true},
		{"hourly pending", Monitoring{Enabled: true, Frequency: FrequencyHourly, LastCheckedAt: &minuteAgo}, false},
		{"daily pending", Monitoring{Enabled: true, Frequency: FrequencyDaily, LastCheckedAt: &hourAgo}, false},
		{"unknown frequency defaults to daily", Monitoring{Enabled: true, Frequency: "sometimes", LastCheckedAt: &hourAgo}, false},
	}
	for _, tt := range tests {
		if got := tt.m.Due(now); got != tt.want {
			t.Errorf("%s: Due = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFrequencyInterval(t *testing.T) {
	if iv, _ := FrequencyWeekly.Interval(); iv != 7*24*time.Hour {
		t.Errorf("weekly = %v", iv)
	}
	if _, err := Frequency("x").Interval(); err == nil {
		t.Error("expected error for unknown frequency")
	}
}
