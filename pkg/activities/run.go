package activities

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mouradhm/mongo-seed/pkg/config"
	"github.com/mouradhm/mongo-seed/pkg/logger"
	"github.com/mouradhm/mongo-seed/pkg/manifest"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

const disconnectTimeout = 5 * time.Second

// Run executes the whole seed sequence once: authenticate, select the target
// database, ensure collections and indexes, then seed documents. The first
// error aborts the remaining steps.
func Run(ctx context.Context, cfg *config.Config, m *manifest.Manifest, log logger.Logger) (models.SeedResult, error) {
	result := models.SeedResult{
		RunID:    uuid.NewString(),
		Database: cfg.TargetDatabase,
	}
	log = log.WithComponent("seeder").WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"database": cfg.TargetDatabase,
	})

	log.Infof("Authenticating as %s on %s", cfg.AdminUser, cfg.AuthDatabase)
	session, err := Authenticate(ctx, cfg)
	if err != nil {
		log.Errorf("Authentication failed: %v", err)
		return result, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Warnf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	log.Infof("Authenticated as %s", session.User())

	err = seedWithSession(ctx, session, cfg, m, log, &result)
	return result, err
}

// seedWithSession runs every step after authentication on an open session.
// It does not close the session.
func seedWithSession(
	ctx context.Context,
	session *Session,
	cfg *config.Config,
	m *manifest.Manifest,
	log logger.Logger,
	result *models.SeedResult,
) error {
	db := SelectDatabase(session, cfg.TargetDatabase)

	names := m.CollectionNames()
	log.Infof("Ensuring %d collections", len(names))
	statuses, err := EnsureCollections(ctx, db, names)
	if err != nil {
		log.Errorf("Collection setup failed: %v", err)
		return err
	}

	created := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		created[s.Name] = s.Created
		if s.Created {
			log.Infof("Created collection %s", s.Name)
		} else {
			log.Debugf("Collection %s already exists", s.Name)
		}
	}

	policy := cfg.SeedPolicy()
	for _, c := range m.Collections {
		collResult := models.CollectionSeedResult{
			CollectionName: c.Name,
			Created:        created[c.Name],
		}
		collLog := log.WithFields(map[string]interface{}{"collection": c.Name})

		collResult.IndexesCreated, err = EnsureIndexes(ctx, db, c.Name, c.Indexes)
		if err != nil {
			collResult.ErrorMessage = err.Error()
			result.CollectionResults = append(result.CollectionResults, collResult)
			collLog.Errorf("Index setup failed: %v", err)
			return err
		}

		collResult.Insert, err = SeedDocuments(ctx, db, c.Name, c.Documents, policy)
		result.TotalDocuments += collResult.Insert.InsertedCount
		if err != nil {
			collResult.ErrorMessage = err.Error()
			result.CollectionResults = append(result.CollectionResults, collResult)
			collLog.Errorf("Seeding failed after %d of %d documents: %v",
				collResult.Insert.InsertedCount, len(c.Documents), err)
			return err
		}

		switch {
		case collResult.Insert.Skipped:
			collLog.Infof("Skipped seeding: %s", collResult.Insert.SkipReason)
		case len(c.Documents) > 0:
			collLog.Infof("Seeded %d documents", collResult.Insert.InsertedCount)
		}

		collResult.Success = true
		result.CollectionResults = append(result.CollectionResults, collResult)
	}

	result.OverallSuccess = true
	log.Infof("Seed completed: %d documents inserted", result.TotalDocuments)
	return nil
}
