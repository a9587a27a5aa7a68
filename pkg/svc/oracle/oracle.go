// Package oracle decides whether a running sensor image is outdated by
// comparing its local identity against the remotely published one.
//
// The check is advisory: any failure to resolve the remote identity degrades
// to "assume current" rather than blocking an installation run. Only
// registry-sourced instances are ever queried; archive-sourced installers are
// self-updating.
package oracle

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/mattskanaut/car-cs-deployment/pkg/client/registry"
)

// Oracle resolves the published identity of the sensor's "latest" tag.
type Oracle struct {
	fetcher  registry.IdentityFetcher
	imageRef string
}

// New creates an Oracle that checks imageRef against the given fetcher.
func New(fetcher registry.IdentityFetcher, imageRef string) *Oracle {
	return &Oracle{fetcher: fetcher, imageRef: imageRef}
}

// IsOutdated reports whether localIdentity differs from the remotely
// published identity. Fetch failures and unknown local identities both
// return false: freshness is never allowed to break availability.
func (o *Oracle) IsOutdated(ctx context.Context, localIdentity string) bool {
	if localIdentity == "" {
		return false
	}

	remoteIdentity, err := o.fetcher.RemoteDigest(ctx, o.imageRef)
	if err != nil {
		log.WithError(err).WithField("image", o.imageRef).
			Warn("version check failed, assuming sensor is current")

		return false
	}

	return remoteIdentity != localIdentity
}
