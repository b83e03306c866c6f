package capture

import "github.com/persistcam/persistcam-go/pkg/hardware"

// detailsCache memoizes the descriptor of one device. It is recomputed only
// when asked for a different identifier. Guarded by the transaction lock.
type detailsCache struct {
	provider hardware.DetailsProvider

	valid   bool
	id      hardware.Identifier
	details hardware.Details
}

func newDetailsCache(provider hardware.DetailsProvider) *detailsCache {
	return &detailsCache{provider: provider}
}

// get returns the details for id, looking them up only on identifier change.
// A failed lookup leaves the cache empty.
func (c *detailsCache) get(id hardware.Identifier) (hardware.Details, error) {
	if c.valid && c.id == id {
		return c.details, nil
	}

	c.valid = false
	d, err := c.provider.DetailsFor(id)
	if err != nil {
		return hardware.Details{}, err
	}

	c.id = id
	c.details = d
	c.valid = true
	return d, nil
}
