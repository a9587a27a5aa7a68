// Package config turns the positional invocation surface and CSDEPLOY_*
// environment overrides into typed configuration for the host and cluster
// variants. Arguments are positional, never flags, so the remote-execution
// platform can map UI fields onto them one-to-one.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mattskanaut/car-cs-deployment/pkg/svc/clusterlock"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
)

// Argument sentinels of the positional surface.
const (
	// RegistrySentinel in the location slot selects the registry source
	// instead of an archive fetch.
	RegistrySentinel = "dockerhub"
	// NoneSentinel marks an intentionally empty optional slot.
	NoneSentinel = "NONE"
)

const hostArgCount = 6

var (
	// ErrArgCount means the positional argument list has the wrong shape.
	ErrArgCount = errors.New("wrong number of arguments")
	// ErrInvalidForce means the force_reinstall slot held neither true nor false.
	ErrInvalidForce = errors.New("force_reinstall must be true or false")
	// ErrChartArgsEmpty means the cluster variant received no chart reference.
	ErrChartArgsEmpty = errors.New("chart arguments must name a chart")
)

// HostConfig is the parsed host-variant invocation.
type HostConfig struct {
	Location       string
	Source         decision.SourceKind
	ActivationID   string
	CustomerID     string
	PodURL         string
	InstallOptions []string
	Force          bool
}

// ClusterConfig is the parsed cluster-variant invocation.
type ClusterConfig struct {
	ChartRef  string
	Version   string
	Namespace string
	SetValues map[string]string
	Force     bool
	Generate  bool
}

// Settings are the environment-tunable values, resolved once per run.
type Settings struct {
	SensorImage    string
	LockNamespace  string
	LogLevel       string
	InstallerImage string
}

// LoadSettings resolves settings from CSDEPLOY_* environment variables with
// built-in defaults.
func LoadSettings() Settings {
	resolver := viper.New()
	resolver.SetEnvPrefix("CSDEPLOY")
	resolver.AutomaticEnv()

	resolver.SetDefault("sensor_image", deployer.DefaultSensorImage)
	resolver.SetDefault("lock_namespace", clusterlock.DefaultNamespace)
	resolver.SetDefault("log_level", "info")
	resolver.SetDefault("installer_image", "docker.io/containersec/csdeploy:latest")

	return Settings{
		SensorImage:    resolver.GetString("sensor_image"),
		LockNamespace:  resolver.GetString("lock_namespace"),
		LogLevel:       resolver.GetString("log_level"),
		InstallerImage: resolver.GetString("installer_image"),
	}
}

// ParseHost parses the six positional host-variant arguments:
// <location> <activation_id> <customer_id> <pod_url> <install_options> <force_reinstall>.
func ParseHost(args []string) (HostConfig, error) {
	if len(args) != hostArgCount {
		return HostConfig{}, fmt.Errorf("%w: expected %d, got %d",
			ErrArgCount, hostArgCount, len(args))
	}

	force, err := parseForce(args[5])
	if err != nil {
		return HostConfig{}, err
	}

	cfg := HostConfig{
		Location:     args[0],
		Source:       decision.SourceArchive,
		ActivationID: args[1],
		CustomerID:   args[2],
		PodURL:       noneToEmpty(args[3]),
		Force:        force,
	}

	if strings.EqualFold(cfg.Location, RegistrySentinel) {
		cfg.Source = decision.SourceRegistry
	}

	if options := noneToEmpty(args[4]); options != "" {
		cfg.InstallOptions = strings.Fields(options)
	}

	return cfg, nil
}

// ParseCluster parses the cluster-variant arguments:
// "<chart_args>" <force_reinstall> [generate].
func ParseCluster(args []string) (ClusterConfig, error) {
	if len(args) < 2 || len(args) > 3 {
		return ClusterConfig{}, fmt.Errorf("%w: expected 2 or 3, got %d",
			ErrArgCount, len(args))
	}

	force, err := parseForce(args[1])
	if err != nil {
		return ClusterConfig{}, err
	}

	cfg, err := parseChartArgs(args[0])
	if err != nil {
		return ClusterConfig{}, err
	}

	cfg.Force = force

	if len(args) == 3 {
		if !strings.EqualFold(args[2], "generate") {
			return ClusterConfig{}, fmt.Errorf("%w: unknown mode %q", ErrArgCount, args[2])
		}

		cfg.Generate = true
	}

	return cfg, nil
}

// parseChartArgs splits a helm-style argument string into chart coordinates.
// The first non-flag token is the chart reference; --set, --version and
// --namespace are recognized, anything else is rejected as a config error.
func parseChartArgs(raw string) (ClusterConfig, error) {
	cfg := ClusterConfig{SetValues: map[string]string{}}

	tokens := strings.Fields(raw)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		switch {
		case token == "--set" && i+1 < len(tokens):
			i++

			key, value, found := strings.Cut(tokens[i], "=")
			if !found {
				return ClusterConfig{}, fmt.Errorf(
					"%w: malformed --set %q", ErrChartArgsEmpty, tokens[i])
			}

			cfg.SetValues[key] = value
		case token == "--version" && i+1 < len(tokens):
			i++
			cfg.Version = tokens[i]
		case token == "--namespace" && i+1 < len(tokens):
			i++
			cfg.Namespace = tokens[i]
		case strings.HasPrefix(token, "--"):
			return ClusterConfig{}, fmt.Errorf(
				"%w: unsupported chart argument %q", ErrChartArgsEmpty, token)
		default:
			cfg.ChartRef = token
		}
	}

	if cfg.ChartRef == "" {
		return ClusterConfig{}, ErrChartArgsEmpty
	}

	return cfg, nil
}

func parseForce(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: got %q", ErrInvalidForce, raw)
	}
}

func noneToEmpty(value string) string {
	if strings.EqualFold(value, NoneSentinel) {
		return ""
	}

	return value
}
