package interrogator

import (
	"context"

	"github.com/rs/zerolog"
)

// Cleaner removes objects from the interrogation bucket once the Central
// API has approved their removal.
type Cleaner struct {
	central CentralClient
	store   ObjectStore
	logger  zerolog.Logger
}

// NewCleaner builds a Cleaner.
func NewCleaner(central CentralClient, store ObjectStore, logger zerolog.Logger) *Cleaner {
	return &Cleaner{central: central, store: store, logger: logger}
}

// ScanAndClean lists every object currently in the interrogation bucket,
// asks the Central API which subset may be removed, and deletes only that
// subset. Objects that disappeared in the meantime are warnings, not
// errors.
//
// TODO: also garbage-collect orphaned multipart uploads; that needs a
// list-ongoing-uploads operation on the store client.
func (c *Cleaner) ScanAndClean(ctx context.Context) error {
	objectIDs, err := c.store.ListInterrogationObjects(ctx)
	if err != nil {
		return err
	}
	c.logger.Info().Int("count", len(objectIDs)).Msg("retrieved object IDs from the interrogation bucket")

	if len(objectIDs) == 0 {
		return nil
	}

	removable, err := c.central.GetRemovableFiles(ctx, objectIDs)
	if err != nil {
		return err
	}

	for _, objectID := range removable {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.store.RemoveObject(ctx, objectID); err != nil {
			c.logger.Error().Err(err).Str("object_id", objectID).Msg("failed to remove object during cleanup")
			return err
		}
		c.logger.Info().Str("object_id", objectID).Msg("removed object from the interrogation bucket")
	}
	return nil
}
