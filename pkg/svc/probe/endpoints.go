package probe

// Engine API endpoints per runtime kind and host OS. Podman's rootful socket
// differs from Docker's, and Windows exposes both engines as named pipes.
const (
	dockerUnixSocket = "unix:///var/run/docker.sock"
	podmanUnixSocket = "unix:///run/podman/podman.sock"
	dockerNamedPipe  = "npipe:////./pipe/docker_engine"
	podmanNamedPipe  = "npipe:////./pipe/podman-machine-default"
)

// EngineEndpoint returns the default engine API endpoint for a runtime kind
// on the given OS ("linux", "windows"). The cluster pseudo-runtime has no
// engine endpoint.
func EngineEndpoint(kind RuntimeKind, goos string) string {
	windows := goos == "windows"

	switch kind {
	case RuntimeDocker:
		if windows {
			return dockerNamedPipe
		}

		return dockerUnixSocket
	case RuntimePodman:
		if windows {
			return podmanNamedPipe
		}

		return podmanUnixSocket
	case RuntimeHelm:
		return ""
	default:
		return ""
	}
}
