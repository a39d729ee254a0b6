package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults pass", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "excessive concurrency", mutate: func(c *Config) { c.Concurrency = 101 }, wantErr: true},
		{name: "sub-second poll interval", mutate: func(c *Config) { c.PollInterval = 500 * time.Millisecond }, wantErr: true},
		{name: "sub-second job timeout", mutate: func(c *Config) { c.JobTimeout = 100 * time.Millisecond }, wantErr: true},
		{name: "sub-second shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = 0 }, wantErr: true},
		{name: "stale threshold below a minute", mutate: func(c *Config) { c.StaleJobThreshold = 30 * time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "wrapped directly", err: NewPermanentError(context.Canceled), want: true},
		{name: "wrapped deeper in the chain", err: fmt.Errorf("handler: %w", NewPermanentError(errors.New("bad payload"))), want: true},
		{name: "plain error", err: errors.New("transient"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermanentErrorPreservesCause(t *testing.T) {
	cause := errors.New("scan not found")
	err := NewPermanentError(cause)

	if err.Error() != "scan not found" {
		t.Errorf("Error() = %q, want %q", err.Error(), "scan not found")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}
