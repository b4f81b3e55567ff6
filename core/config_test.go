package core

import (
	"errors"
	"testing"
	"time"
)

// TestLoadConfigTOML verifies values and defaults from a TOML document
func TestLoadConfigTOML(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantLimits   ResourceLimits
		wantInterval time.Duration
		wantErr      bool
	}{
		{
			name: "all keys",
			input: `max_memory_percent = 90.5
max_global_threads = 500
monitor_interval = "250ms"`,
			wantLimits:   ResourceLimits{MaxMemoryPercent: 90.5, MaxGlobalTasks: 500},
			wantInterval: 250 * time.Millisecond,
		},
		{
			name:         "empty document keeps defaults",
			input:        ``,
			wantLimits:   DefaultResourceLimits(),
			wantInterval: DefaultMonitorInterval,
		},
		{
			name:         "partial",
			input:        `max_global_threads = 10`,
			wantLimits:   ResourceLimits{MaxMemoryPercent: DefaultMaxMemoryPercent, MaxGlobalTasks: 10},
			wantInterval: DefaultMonitorInterval,
		},
		{name: "memory out of range", input: `max_memory_percent = 120.0`, wantErr: true},
		{name: "bad interval", input: `monitor_interval = "soon"`, wantErr: true},
		{name: "negative interval", input: `monitor_interval = "-1s"`, wantErr: true},
		{name: "malformed", input: `max_global_threads = `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits, interval, err := LoadConfigTOML([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("LoadConfigTOML() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfigTOML() error = %v", err)
			}
			if limits != tt.wantLimits {
				t.Errorf("limits = %+v, want %+v", limits, tt.wantLimits)
			}
			if interval != tt.wantInterval {
				t.Errorf("interval = %v, want %v", interval, tt.wantInterval)
			}
		})
	}
}

// TestResourceLimits_Validate verifies the sentinel is wrapped
func TestResourceLimits_Validate(t *testing.T) {
	if err := DefaultResourceLimits().Validate(); err != nil {
		t.Errorf("default limits invalid: %v", err)
	}
	err := ResourceLimits{MaxMemoryPercent: 50, MaxGlobalTasks: -1}.Validate()
	if !errors.Is(err, ErrInvalidLimits) {
		t.Errorf("Validate() = %v, want ErrInvalidLimits", err)
	}
}
