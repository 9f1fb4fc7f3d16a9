package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/netn10/learn-romanian/internal/config"
	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/fingerprint"
	"github.com/netn10/learn-romanian/internal/gitsource"
	"github.com/netn10/learn-romanian/internal/parser"
	"github.com/netn10/learn-romanian/internal/storage"
)

// GitFunc fetches a repository into a local checkout.
type GitFunc func(ctx context.Context, logger logrus.FieldLogger, url, localPath string) error

// Syncer reconciles registered word-list sources into card storage.
type Syncer struct {
	db         *storage.DB
	logger     logrus.FieldLogger
	reposDir   string
	extensions []string
	git        GitFunc
}

// Report summarizes one reconciled source.
type Report struct {
	SourceID int64  `json:"source_id"`
	Path     string `json:"path"`
	Files    int    `json:"files"`
	Parsed   int    `json:"parsed"`
	Added    int    `json:"added"`
	Skipped  int    `json:"skipped"`
	Orphaned int    `json:"orphaned"`
	Error    string `json:"error,omitempty"`
}

func New(db *storage.DB, logger logrus.FieldLogger, cfg config.SourcesConfig) *Syncer {
	return &Syncer{
		db:       db,
		logger:   logger,
		reposDir: cfg.ReposDir,
		extensions: lo.Map(cfg.Extensions, func(ext string, _ int) string {
			return strings.ToLower(ext)
		}),
		git: gitsource.Sync,
	}
}

// RunSync iterates over all sources and reconciles them. A failing source
// is logged and reported without stopping the others.
func (s *Syncer) RunSync(ctx context.Context) ([]Report, error) {
	s.logger.Info("Starting sync process for all sources")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.logger.Info("No sources configured")
		return []Report{}, nil
	}

	reports := make([]Report, 0, len(sources))
	for _, source := range sources {
		report, err := s.SyncSource(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			s.logger.WithFields(logrus.Fields{"source_id": source.ID, "path": source.Path}).
				WithError(err).Error("Failed to sync source")
			report.Error = err.Error()
		}
		reports = append(reports, report)
	}
	s.logger.Info("Sync process complete")
	return reports, nil
}

// SyncSource fetches a git source when needed and reconciles its files.
func (s *Syncer) SyncSource(ctx context.Context, source domain.Source) (Report, error) {
	report := Report{SourceID: source.ID, Path: source.Path}
	log := s.logger.WithFields(logrus.Fields{"source_id": source.ID, "type": source.Type, "path": source.Path})
	log.Info("Syncing source")

	dir := source.Path
	if source.Type == domain.SourceGit {
		localRepoPath, err := gitsource.LocalPath(s.reposDir, source.Path)
		if err != nil {
			return report, err
		}
		if err := os.MkdirAll(filepath.Dir(localRepoPath), 0o755); err != nil {
			return report, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := s.git(ctx, log, source.Path, localRepoPath); err != nil {
			return report, err
		}
		dir = localRepoPath
	}

	return s.reconcile(ctx, log, source.ID, dir, report)
}

func (s *Syncer) reconcile(ctx context.Context, log logrus.FieldLogger, sourceID int64, dir string, report Report) (Report, error) {
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.wantFile(d.Name()) {
			return nil
		}

		pairs, err := parser.ParseFile(path)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		report.Files++
		report.Parsed += len(pairs)
		for _, pair := range pairs {
			found[fingerprint.Key(pair.Romanian)] = true
		}

		res, err := s.db.BulkCreate(ctx, pairs, storage.BulkOptions{
			SkipDuplicates: true,
			Tags:           []string{fileTag(d.Name())},
			SourceID:       &sourceID,
		})
		if err != nil {
			return fmt.Errorf("storing cards from %s: %w", path, err)
		}
		report.Added += res.AddedCount
		report.Skipped += res.SkippedCount
		if res.AddedCount > 0 {
			log.WithFields(logrus.Fields{"file": path, "added": res.AddedCount}).Info("New cards found")
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	dbCards, err := s.db.GetCardsBySourceID(ctx, sourceID)
	if err != nil {
		return report, err
	}
	for _, card := range dbCards {
		if found[fingerprint.Key(card.Romanian)] {
			continue
		}
		log.WithField("card_id", card.ID).Debug("Orphaned card, deleting")
		if err := s.db.DeleteCard(ctx, card.ID); err != nil {
			log.WithError(err).WithField("card_id", card.ID).Warn("Failed to delete orphaned card")
			continue
		}
		report.Orphaned++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, sourceID); err != nil {
		log.WithError(err).Warn("Failed to update last scanned for source")
	}

	log.WithFields(logrus.Fields{
		"files":            report.Files,
		"parsed_pairs":     report.Parsed,
		"added":            report.Added,
		"orphaned_deleted": report.Orphaned,
	}).Info("Reconciliation complete")
	return report, nil
}

func (s *Syncer) wantFile(name string) bool {
	return lo.Contains(s.extensions, strings.ToLower(filepath.Ext(name)))
}

// fileTag turns "Food & Drinks.txt" into "food & drinks".
func fileTag(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}
