package main

import (
	"fmt"
	"strings"

	"github.com/stroemhansen/yolocam/internal/deploy"
)

const (
	defaultImage     = "registry.example.com/lpr/recognition-engine:latest"
	containerName    = "lpr-recognition-engine"
	containerPort    = "8100:8080"
	licenseVolume    = "license:/license"
)

// Installer drives the recognition-engine container's lifecycle through
// the host's docker or podman binary. It never touches anything beyond
// the container runtime: the engine's own internals are out of scope.
type Installer struct {
	Runtime string // "docker" or "podman"
	Image   string
	Token   string
	License string
	DryRun  bool

	Executor *deploy.Executor
}

// NewInstaller builds an Installer running entirely against the local
// host (the recognition engine is always co-located with the appliance).
func NewInstaller(runtime, image, token, license string, dryRun bool) *Installer {
	if image == "" {
		image = defaultImage
	}
	return &Installer{
		Runtime:  runtime,
		Image:    image,
		Token:    token,
		License:  license,
		DryRun:   dryRun,
		Executor: deploy.NewExecutor(dryRun),
	}
}

// DetectRuntime returns the first of docker/podman found on the host,
// preferring docker when both are present.
func DetectRuntime(exec *deploy.Executor) (string, error) {
	for _, candidate := range []string{"docker", "podman"} {
		if _, err := exec.Run(fmt.Sprintf("command -v %s", candidate)); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("lprinstall: neither docker nor podman found on PATH")
}

// Install pulls the latest engine image, removes any previous
// container under the same name, and starts a fresh one.
func (i *Installer) Install() error {
	fmt.Printf("Pulling %s via %s...\n", i.Image, i.Runtime)
	if _, err := i.Executor.Run(fmt.Sprintf("%s pull %s", i.Runtime, i.Image)); err != nil {
		return fmt.Errorf("lprinstall: pull: %w", err)
	}

	if err := i.removeExisting(); err != nil {
		return err
	}

	fmt.Println("Starting recognition engine container...")
	runCmd := i.runCommand()
	if _, err := i.Executor.Run(runCmd); err != nil {
		return fmt.Errorf("lprinstall: run: %w", err)
	}

	fmt.Println("Recognition engine installed and running.")
	return nil
}

// Update re-pulls the configured image and recreates the container,
// leaving the token/license/port configuration unchanged.
func (i *Installer) Update() error {
	return i.Install()
}

// Uninstall stops and removes the container, leaving the pulled image
// and the license volume in place.
func (i *Installer) Uninstall() error {
	if err := i.removeExisting(); err != nil {
		return err
	}
	fmt.Println("Recognition engine container removed.")
	return nil
}

func (i *Installer) removeExisting() error {
	exists, err := i.containerExists()
	if err != nil {
		return fmt.Errorf("lprinstall: check existing container: %w", err)
	}
	if !exists {
		return nil
	}

	fmt.Println("Stopping previous container...")
	if _, err := i.Executor.Run(fmt.Sprintf("%s stop %s", i.Runtime, containerName)); err != nil {
		return fmt.Errorf("lprinstall: stop: %w", err)
	}
	if _, err := i.Executor.Run(fmt.Sprintf("%s rm %s", i.Runtime, containerName)); err != nil {
		return fmt.Errorf("lprinstall: rm: %w", err)
	}
	return nil
}

func (i *Installer) containerExists() (bool, error) {
	out, err := i.Executor.Run(fmt.Sprintf("%s ps -a --filter name=^%s$ --format '{{.Names}}'", i.Runtime, containerName))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == containerName, nil
}

func (i *Installer) runCommand() string {
	return fmt.Sprintf(
		"%s run -d --name %s --restart unless-stopped -p %s -v %s -e TOKEN=%s -e LICENSE_KEY=%s %s",
		i.Runtime, containerName, containerPort, licenseVolume, i.Token, i.License, i.Image,
	)
}
