package osutil

import (
	"runtime"
	"testing"
)

func TestUserHomeDirPrefersHOME(t *testing.T) {
	t.Setenv("HOME", "home")
	t.Setenv("USERPROFILE", "userProfile")

	got, err := UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error = %v", err)
	}
	if got != "home" {
		t.Errorf("UserHomeDir() = %q, want %q", got, "home")
	}
}

func TestUserHomeDirFallsBackToUSERPROFILE(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skipf("%%USERPROFILE%% is only consulted on Windows")
	}

	t.Setenv("HOME", "")
	t.Setenv("USERPROFILE", "userProfile")

	got, err := UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error = %v", err)
	}
	if got != "userProfile" {
		t.Errorf("UserHomeDir() = %q, want %q", got, "userProfile")
	}
}
