package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew    = "content.service.new"
	opCreateItem    = "content.create_item"
	opCreateVersion = "content.create_version"
	opTransition    = "content.transition"
	opRestore       = "content.restore"
	opDiff          = "content.diff"
	opHistory       = "content.history"
	opLock          = "content.lock"
	opUnlock        = "content.unlock"
	opVerify        = "content.verify"
)

// ServiceConfig describes the dependencies of the content repository.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	// LockTTL is the optional expiry applied to edit locks; zero means locks
	// never expire and must be released explicitly.
	LockTTL time.Duration
}

// Service is the aggregate root of the versioned content engine. It owns the
// collection of content items, their version chains, and the edit locks, and
// serializes all mutations of one item through a row-locked transaction.
type Service struct {
	db      *gorm.DB
	clock   func() time.Time
	factory versionFactory
	locks   LockPolicy
	logger  *zap.Logger
}

// NewService constructs the content repository service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:      cfg.Database,
		clock:   clock,
		factory: versionFactory{ids: cfg.IDProvider, clock: clock},
		locks:   LockPolicy{TTL: cfg.LockTTL},
		logger:  logger,
	}, nil
}

// CreateItemRequest carries the material for a new item and its first version.
type CreateItemRequest struct {
	Title             string
	Content           string
	Metadata          Metadata
	Creator           Actor
	ChangeDescription string
}

// CreateItem creates a content item together with its first version ("1.0",
// draft, change type created) in one transaction.
func (s *Service) CreateItem(ctx context.Context, req CreateItemRequest) (Item, Version, error) {
	itemIDValue, err := s.factory.ids.NewID()
	if err != nil {
		return Item{}, Version{}, s.fail(opCreateItem, "id_generation_failed", err)
	}
	itemID, err := NewItemID(itemIDValue)
	if err != nil {
		return Item{}, Version{}, s.fail(opCreateItem, "invalid_item_id", err)
	}

	version, err := s.factory.build(versionInputs{
		ItemID:            itemID,
		Title:             req.Title,
		Content:           req.Content,
		Metadata:          req.Metadata,
		Editor:            req.Creator.UserID,
		ChangeDescription: req.ChangeDescription,
		ChangeType:        ChangeTypeCreated,
	}, nil)
	if err != nil {
		return Item{}, Version{}, s.fail(opCreateItem, "version_build_failed", err)
	}

	item := Item{
		ItemID:           itemID.String(),
		CurrentVersionID: version.VersionID,
		CreatedAtSeconds: s.clock().UTC().Unix(),
		CreatedBy:        req.Creator.UserID.String(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&version).Error; err != nil {
			return s.fail(opCreateItem, "version_insert_failed", err)
		}
		if err := tx.Create(&item).Error; err != nil {
			return s.fail(opCreateItem, "item_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Item{}, Version{}, txErr
	}

	s.logger.Info("content item created",
		zap.String("item_id", item.ItemID),
		zap.String("version_id", version.VersionID))
	return item, version, nil
}

// CreateVersionRequest carries the material for a subsequent version of an item.
type CreateVersionRequest struct {
	ItemID            ItemID
	Title             string
	Content           string
	Metadata          Metadata
	Editor            Actor
	ChangeDescription string
	IsMinor           bool
}

// CreateVersion produces a new draft version of an existing item. The previous
// current version joins the history and the current pointer is repointed, all
// atomically. An item locked by another user fails with ErrItemLocked.
func (s *Service) CreateVersion(ctx context.Context, req CreateVersionRequest) (Version, error) {
	var created Version

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockedItem(tx, req.ItemID)
		if err != nil {
			return s.fail(opCreateVersion, "item_lookup_failed", err)
		}
		if s.locks.HeldByOther(item, req.Editor.UserID, s.clock()) {
			return s.fail(opCreateVersion, "item_locked",
				fmt.Errorf("%w: held by %s", ErrItemLocked, *item.LockedBy))
		}

		var previous Version
		if err := tx.Where("version_id = ?", item.CurrentVersionID).Take(&previous).Error; err != nil {
			return s.fail(opCreateVersion, "current_version_lookup_failed", err)
		}

		changeType := ChangeTypeEdited
		if previousMeta, err := previous.Metadata(); err == nil {
			if previous.Content == req.Content && previous.Title == req.Title && !previousMeta.Equal(req.Metadata) {
				changeType = ChangeTypeMetadataUpdated
			}
		}

		version, err := s.factory.build(versionInputs{
			ItemID:            req.ItemID,
			Title:             req.Title,
			Content:           req.Content,
			Metadata:          req.Metadata,
			Editor:            req.Editor.UserID,
			ChangeDescription: req.ChangeDescription,
			ChangeType:        changeType,
			IsMinor:           req.IsMinor,
		}, &previous)
		if err != nil {
			return s.fail(opCreateVersion, "version_build_failed", err)
		}

		if err := tx.Create(&version).Error; err != nil {
			return s.fail(opCreateVersion, "version_insert_failed", err)
		}
		if err := tx.Model(&Item{}).
			Where("item_id = ?", item.ItemID).
			Update("current_version_id", version.VersionID).Error; err != nil {
			return s.fail(opCreateVersion, "item_update_failed", err)
		}

		created = version
		return nil
	})
	if txErr != nil {
		return Version{}, txErr
	}

	s.logger.Info("content version created",
		zap.String("item_id", created.ItemID),
		zap.String("version_id", created.VersionID),
		zap.String("version_number", created.VersionNumber))
	return created, nil
}

// TransitionRequest asks for a workflow status change on one version.
type TransitionRequest struct {
	VersionID VersionID
	Target    Status
	Actor     Actor
	Note      string
}

// Transition advances a version through the review workflow. Publishing
// supersedes the item's previously published version in the same transaction.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (Version, error) {
	var updated Version

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var version Version
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("version_id = ?", req.VersionID.String()).
			Take(&version).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail(opTransition, "version_not_found",
				fmt.Errorf("%w: %s", ErrVersionNotFound, req.VersionID))
		}
		if err != nil {
			return s.fail(opTransition, "version_lookup_failed", err)
		}

		itemID, err := NewItemID(version.ItemID)
		if err != nil {
			return s.fail(opTransition, "invalid_item_id", err)
		}
		item, err := s.lockedItem(tx, itemID)
		if err != nil {
			return s.fail(opTransition, "item_lookup_failed", err)
		}

		tc := TransitionContext{
			Actor:         req.Actor,
			Note:          req.Note,
			LockedByOther: s.locks.HeldByOther(item, req.Actor.UserID, s.clock()),
		}
		if err := ValidateTransition(version, req.Target, tc); err != nil {
			return s.fail(opTransition, "transition_rejected", err)
		}

		updates := map[string]interface{}{"status": req.Target}
		if req.Target == StatusApproved {
			updates["approved_by"] = req.Actor.UserID.String()
			updates["approved_at_s"] = s.clock().UTC().Unix()
		}

		if req.Target == StatusPublished {
			// Retire the previously published version of this item; exactly
			// one published version may exist per item.
			if err := tx.Model(&Version{}).
				Where("item_id = ? AND status = ? AND version_id <> ?",
					version.ItemID, StatusPublished, version.VersionID).
				Update("status", StatusSuperseded).Error; err != nil {
				return s.fail(opTransition, "supersede_failed", err)
			}
		}

		if err := tx.Model(&Version{}).
			Where("version_id = ?", version.VersionID).
			Updates(updates).Error; err != nil {
			return s.fail(opTransition, "status_update_failed", err)
		}

		if err := tx.Where("version_id = ?", version.VersionID).Take(&updated).Error; err != nil {
			return s.fail(opTransition, "version_reload_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Version{}, txErr
	}

	s.logger.Info("content version transitioned",
		zap.String("version_id", updated.VersionID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// RestoreRequest asks for a new draft version copying an older version's content.
type RestoreRequest struct {
	ItemID            ItemID
	SourceVersionID   VersionID
	Editor            Actor
	ChangeDescription string
}

// Restore creates a new draft version whose title, content, and metadata are
// copied from an older version of the same item. The source version is never
// mutated; restoring is always a forward append to the chain.
func (s *Service) Restore(ctx context.Context, req RestoreRequest) (Version, error) {
	var created Version

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockedItem(tx, req.ItemID)
		if err != nil {
			return s.fail(opRestore, "item_lookup_failed", err)
		}
		if s.locks.HeldByOther(item, req.Editor.UserID, s.clock()) {
			return s.fail(opRestore, "item_locked",
				fmt.Errorf("%w: held by %s", ErrItemLocked, *item.LockedBy))
		}

		var source Version
		err = tx.Where("version_id = ? AND item_id = ?",
			req.SourceVersionID.String(), req.ItemID.String()).Take(&source).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail(opRestore, "source_not_found",
				fmt.Errorf("%w: %s", ErrVersionNotFound, req.SourceVersionID))
		}
		if err != nil {
			return s.fail(opRestore, "source_lookup_failed", err)
		}
		if err := verifyDigest(source); err != nil {
			return s.fail(opRestore, "integrity_check_failed", err)
		}

		sourceMeta, err := source.Metadata()
		if err != nil {
			return s.fail(opRestore, "source_metadata_failed", err)
		}

		var previous Version
		if err := tx.Where("version_id = ?", item.CurrentVersionID).Take(&previous).Error; err != nil {
			return s.fail(opRestore, "current_version_lookup_failed", err)
		}

		description := req.ChangeDescription
		if description == "" {
			description = fmt.Sprintf("Restored version %s", source.VersionNumber)
		}

		version, err := s.factory.build(versionInputs{
			ItemID:            req.ItemID,
			Title:             source.Title,
			Content:           source.Content,
			Metadata:          sourceMeta,
			Editor:            req.Editor.UserID,
			ChangeDescription: description,
			ChangeType:        ChangeTypeRestored,
			IsMinor:           true,
		}, &previous)
		if err != nil {
			return s.fail(opRestore, "version_build_failed", err)
		}

		if err := tx.Create(&version).Error; err != nil {
			return s.fail(opRestore, "version_insert_failed", err)
		}
		if err := tx.Model(&Item{}).
			Where("item_id = ?", item.ItemID).
			Update("current_version_id", version.VersionID).Error; err != nil {
			return s.fail(opRestore, "item_update_failed", err)
		}

		created = version
		return nil
	})
	if txErr != nil {
		return Version{}, txErr
	}

	s.logger.Info("content version restored",
		zap.String("item_id", created.ItemID),
		zap.String("version_id", created.VersionID),
		zap.String("source_version_id", req.SourceVersionID.String()))
	return created, nil
}

// Diff computes the structural difference between two versions of one item.
// Both stored digests are re-verified first so corruption surfaces loudly
// instead of flowing into a comparison.
func (s *Service) Diff(ctx context.Context, itemID ItemID, oldID, newID VersionID) (VersionDiff, error) {
	if err := s.ensureItem(ctx, itemID, opDiff); err != nil {
		return VersionDiff{}, err
	}

	oldVersion, err := s.itemVersion(ctx, itemID, oldID, opDiff)
	if err != nil {
		return VersionDiff{}, err
	}
	newVersion, err := s.itemVersion(ctx, itemID, newID, opDiff)
	if err != nil {
		return VersionDiff{}, err
	}

	if err := verifyDigest(oldVersion); err != nil {
		return VersionDiff{}, s.fail(opDiff, "integrity_check_failed", err)
	}
	if err := verifyDigest(newVersion); err != nil {
		return VersionDiff{}, s.fail(opDiff, "integrity_check_failed", err)
	}

	diff, err := Compare(oldVersion, newVersion)
	if err != nil {
		return VersionDiff{}, s.fail(opDiff, "compare_failed", err)
	}
	return diff, nil
}

// History returns every version of the item, current first, by walking the
// previous-version chain backwards from the current pointer. The stored
// history set never contains the current version id; the chain walk keeps the
// ordering deterministic even when creation timestamps collide.
func (s *Service) History(ctx context.Context, itemID ItemID) ([]Version, error) {
	var item Item
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID.String()).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.fail(opHistory, "item_not_found", fmt.Errorf("%w: %s", ErrItemNotFound, itemID))
	}
	if err != nil {
		return nil, s.fail(opHistory, "item_lookup_failed", err)
	}

	var versions []Version
	if err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID.String()).
		Order("created_at_s DESC").
		Find(&versions).Error; err != nil {
		return nil, s.fail(opHistory, "query_failed", err)
	}

	byID := make(map[string]Version, len(versions))
	for _, version := range versions {
		byID[version.VersionID] = version
	}

	ordered := make([]Version, 0, len(versions))
	seen := make(map[string]bool, len(versions))
	cursor := item.CurrentVersionID
	for cursor != "" && !seen[cursor] {
		version, ok := byID[cursor]
		if !ok {
			break
		}
		ordered = append(ordered, version)
		seen[cursor] = true
		if version.PreviousVersionID == nil {
			break
		}
		cursor = *version.PreviousVersionID
	}

	// Versions outside the chain should not exist; keep them visible rather
	// than dropping audit records if they ever do.
	for _, version := range versions {
		if !seen[version.VersionID] {
			ordered = append(ordered, version)
		}
	}

	return ordered, nil
}

// Lock acquires the exclusive edit lock on the item for the actor.
func (s *Service) Lock(ctx context.Context, itemID ItemID, actor Actor) (Item, error) {
	return s.mutateLock(ctx, itemID, opLock, func(item *Item) error {
		return s.locks.Acquire(item, actor, s.clock())
	})
}

// Unlock releases the edit lock; only the holder or an admin may release.
func (s *Service) Unlock(ctx context.Context, itemID ItemID, actor Actor) (Item, error) {
	return s.mutateLock(ctx, itemID, opUnlock, func(item *Item) error {
		return s.locks.Release(item, actor, s.clock())
	})
}

// Verify recomputes the digest of every stored version of the item and fails
// with ErrIntegrityViolation on the first mismatch.
func (s *Service) Verify(ctx context.Context, itemID ItemID) error {
	if err := s.ensureItem(ctx, itemID, opVerify); err != nil {
		return err
	}

	var versions []Version
	if err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID.String()).
		Find(&versions).Error; err != nil {
		return s.fail(opVerify, "query_failed", err)
	}

	for _, version := range versions {
		if err := verifyDigest(version); err != nil {
			return s.fail(opVerify, "integrity_check_failed", err)
		}
	}
	return nil
}

func (s *Service) mutateLock(ctx context.Context, itemID ItemID, operation string, mutate func(*Item) error) (Item, error) {
	var result Item

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockedItem(tx, itemID)
		if err != nil {
			return s.fail(operation, "item_lookup_failed", err)
		}
		if err := mutate(&item); err != nil {
			return s.fail(operation, "lock_rejected", err)
		}
		if err := tx.Model(&Item{}).
			Where("item_id = ?", item.ItemID).
			Updates(map[string]interface{}{
				"is_locked":   item.IsLocked,
				"locked_by":   item.LockedBy,
				"locked_at_s": item.LockedAtSeconds,
			}).Error; err != nil {
			return s.fail(operation, "lock_update_failed", err)
		}
		result = item
		return nil
	})
	if txErr != nil {
		return Item{}, txErr
	}
	return result, nil
}

// lockedItem loads the item row under a row lock for the enclosing transaction.
func (s *Service) lockedItem(tx *gorm.DB, itemID ItemID) (Item, error) {
	var item Item
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ?", itemID.String()).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return item, err
}

func (s *Service) ensureItem(ctx context.Context, itemID ItemID, operation string) error {
	var item Item
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID.String()).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fail(operation, "item_not_found", fmt.Errorf("%w: %s", ErrItemNotFound, itemID))
	}
	if err != nil {
		return s.fail(operation, "item_lookup_failed", err)
	}
	return nil
}

func (s *Service) itemVersion(ctx context.Context, itemID ItemID, versionID VersionID, operation string) (Version, error) {
	var version Version
	err := s.db.WithContext(ctx).
		Where("version_id = ? AND item_id = ?", versionID.String(), itemID.String()).
		Take(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Version{}, s.fail(operation, "version_not_found",
			fmt.Errorf("%w: %s", ErrVersionNotFound, versionID))
	}
	if err != nil {
		return Version{}, s.fail(operation, "version_lookup_failed", err)
	}
	return version, nil
}

func (s *Service) fail(operation, reason string, err error) error {
	s.logger.Error("content service error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
	return newServiceError(operation, reason, err)
}
