package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"text/template"

	"github.com/adrg/xdg"
	"github.com/kballard/go-shellquote"
)

const (
	launchdLabel = "dev.timescribe.daemon"
	systemdUnit  = "timescribe.service"
)

// ServiceManager installs the daemon as a per-user service so it starts
// with the session.
type ServiceManager struct {
	ExecutablePath string
	ConfigPath     string
	LogPath        string
	// UnitDir overrides the directory the definition is written to.
	UnitDir string
	goos    string
	run     func(name string, args ...string) error
}

// NewServiceManager creates a service manager for the running binary.
func NewServiceManager(configPath, logPath string) (*ServiceManager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return &ServiceManager{
		ExecutablePath: exe,
		ConfigPath:     configPath,
		LogPath:        logPath,
		goos:           goruntime.GOOS,
		run:            runCommand,
	}, nil
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", shellquote.Join(append([]string{name}, args...)...), err, bytes.TrimSpace(out))
	}
	return nil
}

// UnitPath returns where the service definition is written.
func (m *ServiceManager) UnitPath() (string, error) {
	name := systemdUnit
	if m.goos == "darwin" {
		name = launchdLabel + ".plist"
	}
	if m.UnitDir != "" {
		return filepath.Join(m.UnitDir, name), nil
	}
	switch m.goos {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", name), nil
	case "linux":
		return filepath.Join(xdg.ConfigHome, "systemd", "user", name), nil
	default:
		return "", fmt.Errorf("service installation is not supported on %s, run %s at login instead", m.goos, m.Command())
	}
}

// Command returns the daemon command line the service runs, quoted for a
// POSIX shell.
func (m *ServiceManager) Command() string {
	args := []string{m.ExecutablePath, "daemon", "start", "--foreground"}
	if m.ConfigPath != "" {
		args = append(args, "--config", m.ConfigPath)
	}
	return shellquote.Join(args...)
}

// Render returns the service definition for the current platform.
func (m *ServiceManager) Render() ([]byte, error) {
	tmpl := systemdTemplate
	if m.goos == "darwin" {
		tmpl = launchdTemplate
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m); err != nil {
		return nil, fmt.Errorf("failed to render service definition: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the service definition and starts the service.
func (m *ServiceManager) Install() error {
	path, err := m.UnitPath()
	if err != nil {
		return err
	}
	data, err := m.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write service definition: %w", err)
	}

	if m.goos == "darwin" {
		return m.run("launchctl", "load", path)
	}
	if err := m.run("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return m.run("systemctl", "--user", "enable", "--now", systemdUnit)
}

// Uninstall stops the service and removes its definition.
func (m *ServiceManager) Uninstall() error {
	path, err := m.UnitPath()
	if err != nil {
		return err
	}
	// Stop errors are ignored; the service may not be loaded.
	if m.goos == "darwin" {
		_ = m.run("launchctl", "unload", path)
	} else {
		_ = m.run("systemctl", "--user", "disable", "--now", systemdUnit)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove service definition: %w", err)
	}
	if m.goos != "darwin" {
		_ = m.run("systemctl", "--user", "daemon-reload")
	}
	return nil
}

// IsInstalled reports whether the service definition exists.
func (m *ServiceManager) IsInstalled() bool {
	path, err := m.UnitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

var launchdTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>` + launchdLabel + `</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>start</string>
        <string>--foreground</string>
{{- if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
</dict>
</plist>
`))

var systemdTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=TimeScribe work time daemon

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon start --foreground{{if .ConfigPath}} --config {{.ConfigPath}}{{end}}
Restart=on-failure
RestartSec=5
StandardError=append:{{.LogPath}}

[Install]
WantedBy=default.target
`))
