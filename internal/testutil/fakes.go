package testutil

import (
	"context"
	"sync"

	"github.com/sitesmithapp/sitesmith/internal/dns"
	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
)

// StubChecker returns a preset verification outcome and records every
// expectation it was asked about.
type StubChecker struct {
	mu       sync.Mutex
	outcome  lifecycle.VerificationOutcome
	Requests []dns.Expectation
}

func NewStubChecker(outcome lifecycle.VerificationOutcome) *StubChecker {
	return &StubChecker{outcome: outcome}
}

// SetOutcome changes what later checks return.
func (c *StubChecker) SetOutcome(outcome lifecycle.VerificationOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcome = outcome
}

func (c *StubChecker) Check(_ context.Context, exp dns.Expectation) lifecycle.VerificationOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, exp)
	return c.outcome
}

// RecordingArtifacts keeps uploaded objects in memory.
type RecordingArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	PutErr  error
}

func NewRecordingArtifacts() *RecordingArtifacts {
	return &RecordingArtifacts{objects: make(map[string][]byte)}
}

func (a *RecordingArtifacts) Put(_ context.Context, key string, body []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PutErr != nil {
		return a.PutErr
	}
	a.objects[key] = append([]byte(nil), body...)
	return nil
}

func (a *RecordingArtifacts) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	return nil
}

// Object returns the stored body for key.
func (a *RecordingArtifacts) Object(key string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.objects[key]
	return b, ok
}

func (a *RecordingArtifacts) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	return keys
}
