// Package wizard provides an interactive setup wizard for the relay server.
package wizard

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/riftlink/relay/internal/config"
)

// Result contains the wizard output.
type Result struct {
	Config     *config.Config
	ConfigPath string
}

// Wizard manages the interactive setup process.
type Wizard struct {
	theme *huh.Theme
}

// New creates a new setup wizard.
func New() *Wizard {
	return &Wizard{
		theme: huh.ThemeDracula(),
	}
}

// Run executes the interactive setup wizard.
func (w *Wizard) Run() (*Result, error) {
	w.printBanner()

	configPath, bindAddr, err := w.askBasicSetup()
	if err != nil {
		return nil, err
	}

	centralURL, centralPassword, err := w.askCentralServer()
	if err != nil {
		return nil, err
	}

	logLevel, logFormat, fileLog, err := w.askLogging()
	if err != nil {
		return nil, err
	}

	healthAddr, err := w.askMonitoring()
	if err != nil {
		return nil, err
	}

	cfg := w.buildConfig(bindAddr, centralURL, centralPassword, logLevel, logFormat, fileLog, healthAddr)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := w.writeConfig(cfg, configPath); err != nil {
		return nil, err
	}

	w.printSummary(configPath, cfg)

	return &Result{
		Config:     cfg,
		ConfigPath: configPath,
	}, nil
}

func (w *Wizard) printBanner() {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Render(`
  ____  _  __ _   _     _       _
 |  _ \(_)/ _| |_| |   (_)_ __ | | __
 | |_) | | |_| __| |   | | '_ \| |/ /
 |  _ <| |  _| |_| |___| | | | |   <
 |_| \_\_|_|  \__|_____|_|_| |_|_|\_\
`)

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("  Multiplayer Relay Server - Setup Wizard\n")

	fmt.Println(banner)
	fmt.Println(subtitle)
}

func (w *Wizard) askBasicSetup() (configPath, bindAddr string, err error) {
	configPath = "./config.yaml"
	bindAddr = fmt.Sprintf("0.0.0.0:%d", config.DefaultPort)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Basic Setup").
				Description("Configure where the relay listens and where the config is written."),

			huh.NewInput().
				Title("Config File Path").
				Description("Where to write the configuration file").
				Placeholder("./config.yaml").
				Value(&configPath).
				Validate(validateConfigPath),

			huh.NewInput().
				Title("Bind Address").
				Description("IPv4 address and UDP port for game clients").
				Placeholder(fmt.Sprintf("0.0.0.0:%d", config.DefaultPort)).
				Value(&bindAddr).
				Validate(validateBindAddress),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) askCentralServer() (centralURL, centralPassword string, err error) {
	useCentral := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Central Server").
				Description("The central server authenticates players and distributes\nserver-wide settings. Without one the relay runs standalone\nand accepts any client unauthenticated."),

			huh.NewConfirm().
				Title("Connect to a central server?").
				Value(&useCentral),
		),
	).WithTheme(w.theme)

	if err = form.Run(); err != nil {
		return
	}
	if !useCentral {
		return "", "", nil
	}

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Central Server URL").
				Placeholder("https://example.com/").
				Value(&centralURL).
				Validate(validateCentralURL),

			huh.NewInput().
				Title("Central Server Password").
				Description("The shared password configured on the central server").
				EchoMode(huh.EchoModePassword).
				Value(&centralPassword).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("password is required")
					}
					return nil
				}),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) askLogging() (logLevel, logFormat string, fileLog bool, err error) {
	logLevel = "info"
	logFormat = "text"
	fileLog = true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Logging").
				Description("Configure log output."),

			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("Debug (verbose)", "debug"),
					huh.NewOption("Info (recommended)", "info"),
					huh.NewOption("Warning", "warn"),
					huh.NewOption("Error (quiet)", "error"),
				).
				Value(&logLevel),

			huh.NewSelect[string]().
				Title("Log Format").
				Options(
					huh.NewOption("Text (human readable)", "text"),
					huh.NewOption("JSON (machine readable)", "json"),
				).
				Value(&logFormat),

			huh.NewConfirm().
				Title("Also log to a file?").
				Description("Writes server.log next to the config file").
				Value(&fileLog),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) askMonitoring() (healthAddr string, err error) {
	enabled := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Monitoring").
				Description("Optional HTTP endpoint exposing /healthz and /metrics."),

			huh.NewConfirm().
				Title("Enable the monitoring endpoint?").
				Value(&enabled),
		),
	).WithTheme(w.theme)

	if err = form.Run(); err != nil {
		return
	}
	if !enabled {
		return "", nil
	}

	healthAddr = ":8080"
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Monitoring Address").
				Placeholder(":8080").
				Value(&healthAddr).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) buildConfig(bindAddr, centralURL, centralPassword, logLevel, logFormat string, fileLog bool, healthAddr string) *config.Config {
	cfg := config.Default()
	cfg.BindAddress = bindAddr
	cfg.CentralURL = centralURL
	cfg.CentralPassword = centralPassword
	cfg.LogLevel = logLevel
	cfg.LogFormat = logFormat
	cfg.HealthAddress = healthAddr
	if fileLog {
		cfg.LogFile = "server.log"
	}
	return &cfg
}

func (w *Wizard) writeConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# Relay server configuration
# Generated by setup wizard

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (w *Wizard) printSummary(configPath string, cfg *config.Config) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("─────────────────────────────────────────────────")

	fmt.Println()
	fmt.Println(divider)
	fmt.Println(style.Render("✓ Setup Complete!"))
	fmt.Println(divider)
	fmt.Println()

	fmt.Printf("  Config file:  %s\n", configPath)
	fmt.Printf("  Bind address: udp://%s\n", cfg.BindAddress)

	if cfg.Standalone() {
		fmt.Printf("  Mode:         standalone (authentication disabled)\n")
	} else {
		fmt.Printf("  Central:      %s\n", cfg.CentralURL)
	}

	if cfg.HealthAddress != "" {
		fmt.Printf("  Monitoring:   http://%s/healthz\n", cfg.HealthAddress)
	}

	fmt.Println()
	fmt.Println("  To start the server:")
	fmt.Printf("    relay run -c %s\n", configPath)
	fmt.Println()
}

func validateConfigPath(s string) error {
	if s == "" {
		return fmt.Errorf("config path is required")
	}
	if !strings.HasSuffix(s, ".yaml") && !strings.HasSuffix(s, ".yml") {
		return fmt.Errorf("config file should have .yaml or .yml extension")
	}
	return nil
}

func validateBindAddress(s string) error {
	_, err := config.ResolveBindAddress(s)
	return err
}

func validateCentralURL(s string) error {
	if s == "" {
		return fmt.Errorf("central URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("provide an http(s) URL, for example https://example.com/")
	}
	return nil
}
