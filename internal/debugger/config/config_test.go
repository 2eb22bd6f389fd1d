package config

import "testing"

func TestResolveBackendKindStringPrecedence(t *testing.T) {
	t.Setenv(envBackend, "lldb")
	got, err := ResolveBackendKindString("dap")
	if err != nil {
		t.Fatalf("ResolveBackendKindString: %v", err)
	}
	if got != "dap" {
		t.Errorf("explicit value should win over env var, got %q", got)
	}

	got, err = ResolveBackendKindString("")
	if err != nil {
		t.Fatalf("ResolveBackendKindString: %v", err)
	}
	if got != "lldb-cli" {
		t.Errorf("expected env var fallback to resolve lldb -> lldb-cli, got %q", got)
	}
}

func TestResolveBackendKindStringDefaultsToDAP(t *testing.T) {
	t.Setenv(envBackend, "")
	got, err := ResolveBackendKindString("")
	if err != nil {
		t.Fatalf("ResolveBackendKindString: %v", err)
	}
	if got != "dap" {
		t.Errorf("got %q, want dap", got)
	}
}

func TestResolveBackendKindStringRejectsUnknownValue(t *testing.T) {
	if _, err := ResolveBackendKindString("gdb"); err == nil {
		t.Fatal("expected an error for an unrecognized backend name")
	}
}

func TestDAPRequestTimeoutMSFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv(envDAPTimeoutMS, "not-a-number")
	if got := DAPRequestTimeoutMS(); got != DefaultDAPRequestTimeoutMS {
		t.Errorf("got %d, want default %d", got, DefaultDAPRequestTimeoutMS)
	}

	t.Setenv(envDAPTimeoutMS, "-5")
	if got := DAPRequestTimeoutMS(); got != DefaultDAPRequestTimeoutMS {
		t.Errorf("non-positive value should fall back, got %d", got)
	}

	t.Setenv(envDAPTimeoutMS, "5000")
	if got := DAPRequestTimeoutMS(); got != 5000 {
		t.Errorf("got %d, want 5000", got)
	}
}

func TestDAPLogEventsCaseInsensitive(t *testing.T) {
	t.Setenv(envDAPLogEvents, "TRUE")
	if !DAPLogEvents() {
		t.Error("expected TRUE to enable event logging")
	}
	t.Setenv(envDAPLogEvents, "")
	if DAPLogEvents() {
		t.Error("expected unset env var to disable event logging")
	}
}

func TestResolveGuardModePrecedence(t *testing.T) {
	t.Setenv(envUIGuardMode, "warn")
	if got := ResolveGuardMode(GuardModeOff, true); got != GuardModeOff {
		t.Errorf("explicit mode should win, got %v", got)
	}
	if got := ResolveGuardMode(GuardModeError, false); got != GuardModeWarn {
		t.Errorf("expected env var fallback to warn, got %v", got)
	}
}

func TestResolveGuardModeDefaultsToError(t *testing.T) {
	t.Setenv(envUIGuardMode, "")
	if got := ResolveGuardMode(GuardModeError, false); got != GuardModeError {
		t.Errorf("got %v, want GuardModeError", got)
	}
	t.Setenv(envUIGuardMode, "nonsense")
	if got := ResolveGuardMode(GuardModeError, false); got != GuardModeError {
		t.Errorf("unrecognized env value should fall back to error, got %v", got)
	}
}
