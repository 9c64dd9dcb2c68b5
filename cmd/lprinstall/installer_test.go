package main

import (
	"strings"
	"testing"
)

func TestNewInstallerDefaultsImage(t *testing.T) {
	i := NewInstaller("docker", "", "tok", "lic", false)
	if i.Image != defaultImage {
		t.Errorf("Image = %q, want default %q", i.Image, defaultImage)
	}
}

func TestNewInstallerHonorsImageOverride(t *testing.T) {
	i := NewInstaller("podman", "registry.example.com/custom:v2", "tok", "lic", false)
	if i.Image != "registry.example.com/custom:v2" {
		t.Errorf("Image = %q, want override preserved", i.Image)
	}
}

func TestRunCommandIncludesTokenLicensePortAndVolume(t *testing.T) {
	i := NewInstaller("docker", "", "secret-token", "secret-license", false)
	cmd := i.runCommand()

	for _, want := range []string{
		"docker run",
		"--name " + containerName,
		"-p " + containerPort,
		"-v " + licenseVolume,
		"-e TOKEN=secret-token",
		"-e LICENSE_KEY=secret-license",
		defaultImage,
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("runCommand() = %q, missing %q", cmd, want)
		}
	}
}

func TestInstallDryRunDoesNotError(t *testing.T) {
	i := NewInstaller("docker", "", "tok", "lic", true)
	if err := i.Install(); err != nil {
		t.Errorf("Install() in dry-run mode returned error: %v", err)
	}
}

func TestUninstallDryRunDoesNotError(t *testing.T) {
	i := NewInstaller("docker", "", "tok", "lic", true)
	if err := i.Uninstall(); err != nil {
		t.Errorf("Uninstall() in dry-run mode returned error: %v", err)
	}
}
