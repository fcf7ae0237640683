package runtimeinfo

import "testing"

func TestProbeSnapshotReflectsDetectedEnvironment(t *testing.T) {
	t.Parallel()

	p := New(fakeEnv(map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"}))
	d := p.Snapshot()
	if d.Orchestrator != "kubernetes" {
		t.Errorf("Orchestrator = %q, want kubernetes", d.Orchestrator)
	}
	if !d.Managed() {
		t.Error("expected Managed() = true under kubernetes")
	}
	if d.ProcessID == 0 {
		t.Error("expected ProcessID to be populated with the real PID")
	}
}

func TestDescriptorManagedFalseWhenUnmanaged(t *testing.T) {
	t.Parallel()

	d := Descriptor{}
	if d.Managed() {
		t.Error("expected Managed() = false for an empty Descriptor")
	}
}

func TestProbeRefreshPicksUpEnvironmentChanges(t *testing.T) {
	t.Parallel()

	vals := map[string]string{}
	p := New(fakeEnv(vals))
	if p.Snapshot().CI != "" {
		t.Fatalf("expected no CI initially, got %q", p.Snapshot().CI)
	}

	vals["GITHUB_ACTIONS"] = "true"
	d := p.Refresh()
	if d.CI != "github-actions" {
		t.Errorf("CI after refresh = %q, want github-actions", d.CI)
	}
}
