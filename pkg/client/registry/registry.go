// Package registry resolves remote image identities without pulling layers.
//
// The lookup goes through the registry's manifest HEAD endpoint, which does
// not count against registry pull quotas. This keeps version checking free of
// rate-limit pressure; the only pull-credit-consuming operation in the
// installer is the deployer's actual image pull.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// ErrImageRefRequired is returned when an empty image reference is supplied.
var ErrImageRefRequired = errors.New("registry: image reference is required")

// IdentityFetcher resolves the published content digest for an image
// reference. Implementations must not pull image content.
type IdentityFetcher interface {
	RemoteDigest(ctx context.Context, imageRef string) (string, error)
}

// Client is the default IdentityFetcher backed by go-containerregistry.
type Client struct {
	insecure bool
}

var _ IdentityFetcher = (*Client)(nil)

// NewClient creates a registry metadata client using the default keychain.
func NewClient() *Client {
	return &Client{}
}

// NewInsecureClient creates a registry metadata client that tolerates
// plain-HTTP registries, for air-gapped mirror setups.
func NewInsecureClient() *Client {
	return &Client{insecure: true}
}

// RemoteDigest returns the manifest digest for imageRef (e.g.
// "docker.io/containersec/sensor:latest") as a "sha256:..." string.
func (c *Client) RemoteDigest(ctx context.Context, imageRef string) (string, error) {
	if imageRef == "" {
		return "", ErrImageRefRequired
	}

	nameOpts := []name.Option{name.WeakValidation}
	if c.insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}

	ref, err := name.ParseReference(imageRef, nameOpts...)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", imageRef, err)
	}

	descriptor, err := remote.Head(
		ref,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return "", fmt.Errorf("fetch manifest descriptor for %q: %w", imageRef, err)
	}

	return descriptor.Digest.String(), nil
}
