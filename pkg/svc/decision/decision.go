// Package decision contains the installation decision engine: a pure state
// machine mapping the observable sensor state plus a single force flag to
// exactly one action.
package decision

// Action is the decided installation action for one target.
type Action int

// The four possible actions, Skip being the only one that performs no work.
const (
	// ActionSkip leaves the target untouched.
	ActionSkip Action = iota
	// ActionInstall performs a fresh installation.
	ActionInstall
	// ActionUpgrade tears down the running instance and installs the newer image.
	ActionUpgrade
	// ActionForceReinstall removes whatever exists and installs from scratch.
	// Taken on user request (force flag) or as the repair path for a
	// present-but-dead instance.
	ActionForceReinstall
)

// String returns the lower-case action name used in logs and the summary.
func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionInstall:
		return "install"
	case ActionUpgrade:
		return "upgrade"
	case ActionForceReinstall:
		return "force-reinstall"
	default:
		return "unknown"
	}
}

// SourceKind identifies how the sensor is delivered to a target.
type SourceKind string

// Supported install sources.
const (
	// SourceArchive is a fetched self-updating installer package. Archive
	// deployments are never version-checked by this tool.
	SourceArchive SourceKind = "archive"
	// SourceRegistry is an image pulled from a container registry,
	// version-checked and re-pulled on upgrade.
	SourceRegistry SourceKind = "registry"
)

// State is the observable sensor state at one target, queried fresh at the
// start of that target's processing.
type State struct {
	// Exists reports whether a sensor instance is present at all.
	Exists bool
	// Running reports whether the present instance is running.
	Running bool
	// Outdated reports whether the running image differs from the published
	// one. False when unknown: a failed version check never blocks.
	Outdated bool
}

// Plan is the decision output for one target.
type Plan struct {
	Action Action
	Reason string
}

// Decide maps (force, state, source) to exactly one action, evaluated in
// priority order. It is total: every input combination yields a plan, and
// derivation has no side effects.
func Decide(force bool, state State, source SourceKind) Plan {
	switch {
	case force:
		if state.Exists {
			return Plan{
				Action: ActionForceReinstall,
				Reason: "force requested, existing instance will be replaced",
			}
		}

		return Plan{Action: ActionForceReinstall, Reason: "force requested"}

	case !state.Exists:
		return Plan{Action: ActionInstall, Reason: "no sensor instance present"}

	case !state.Running:
		// A present-but-dead instance is never left in place.
		return Plan{
			Action: ActionForceReinstall,
			Reason: "instance present but not running, repairing",
		}

	case source == SourceRegistry && state.Outdated:
		return Plan{Action: ActionUpgrade, Reason: "newer sensor image published"}

	default:
		return Plan{Action: ActionSkip, Reason: "sensor already running and current"}
	}
}
