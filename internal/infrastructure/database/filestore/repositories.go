package filestore

import (
	"context"
	"sort"
	"time"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

type IdentityRepository struct{ s *Store }

func (r *IdentityRepository) Get(ctx context.Context, accountID string) (*models.Identity, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	identity, ok := r.s.doc.Identities[accountID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

func (r *IdentityRepository) GetByExternal(ctx context.Context, externalID string) (*models.Identity, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	for _, identity := range r.s.doc.Identities {
		if identity.IsLinked() && *identity.ExternalID == externalID {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r *IdentityRepository) Save(ctx context.Context, identity *models.Identity) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	cp := *identity
	r.s.doc.Identities[identity.AccountID] = &cp
	return r.s.flush()
}

func (r *IdentityRepository) Delete(ctx context.Context, accountID string) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	if _, ok := r.s.doc.Identities[accountID]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.s.doc.Identities, accountID)
	return r.s.flush()
}

func (r *IdentityRepository) ListLinked(ctx context.Context) ([]*models.Identity, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	var identities []*models.Identity
	for _, identity := range r.s.doc.Identities {
		if identity.IsLinked() {
			cp := *identity
			identities = append(identities, &cp)
		}
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].AccountID < identities[j].AccountID
	})
	return identities, nil
}

type PendingLinkRepository struct{ s *Store }

func (r *PendingLinkRepository) Get(ctx context.Context, accountID string) (*models.PendingLink, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	link, ok := r.s.doc.PendingLinks[accountID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (r *PendingLinkRepository) GetByCode(ctx context.Context, code string) (*models.PendingLink, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	for _, link := range r.s.doc.PendingLinks {
		if link.Code == code {
			cp := *link
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r *PendingLinkRepository) Save(ctx context.Context, link *models.PendingLink) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	cp := *link
	r.s.doc.PendingLinks[link.AccountID] = &cp
	return r.s.flush()
}

func (r *PendingLinkRepository) Delete(ctx context.Context, accountID string) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	if _, ok := r.s.doc.PendingLinks[accountID]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.s.doc.PendingLinks, accountID)
	return r.s.flush()
}

func (r *PendingLinkRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if err := r.s.lock(ctx); err != nil {
		return 0, err
	}
	defer r.s.unlock()

	var removed int64
	for id, link := range r.s.doc.PendingLinks {
		if link.IsExpired() {
			delete(r.s.doc.PendingLinks, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.s.flush()
}

type BanRepository struct{ s *Store }

func (r *BanRepository) Get(ctx context.Context, origin string) (*models.Ban, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	ban, ok := r.s.doc.Bans[origin]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := *ban
	return &cp, nil
}

func (r *BanRepository) Save(ctx context.Context, ban *models.Ban) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	cp := *ban
	r.s.doc.Bans[ban.Origin] = &cp
	return r.s.flush()
}

func (r *BanRepository) Delete(ctx context.Context, origin string) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	if _, ok := r.s.doc.Bans[origin]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.s.doc.Bans, origin)
	return r.s.flush()
}

func (r *BanRepository) ListActive(ctx context.Context) ([]*models.Ban, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	var bans []*models.Ban
	for _, ban := range r.s.doc.Bans {
		if ban.IsActive() {
			cp := *ban
			bans = append(bans, &cp)
		}
	}
	sort.Slice(bans, func(i, j int) bool {
		return bans[i].CreatedAt.After(bans[j].CreatedAt)
	})
	return bans, nil
}

func (r *BanRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if err := r.s.lock(ctx); err != nil {
		return 0, err
	}
	defer r.s.unlock()

	var removed int64
	for origin, ban := range r.s.doc.Bans {
		if !ban.IsActive() {
			delete(r.s.doc.Bans, origin)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.s.flush()
}

type EventRepository struct{ s *Store }

func (r *EventRepository) Save(ctx context.Context, event *models.SecurityEvent) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	cp := *event
	r.s.doc.Events = append(r.s.doc.Events, &cp)
	return r.s.flush()
}

func (r *EventRepository) List(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, error) {
	if err := r.s.lock(ctx); err != nil {
		return nil, err
	}
	defer r.s.unlock()

	matched := r.filtered(filter)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	events := make([]*models.SecurityEvent, len(matched))
	for i, event := range matched {
		cp := *event
		events[i] = &cp
	}
	return events, nil
}

func (r *EventRepository) Count(ctx context.Context, filter models.EventFilter) (int64, error) {
	if err := r.s.lock(ctx); err != nil {
		return 0, err
	}
	defer r.s.unlock()
	return int64(len(r.filtered(filter))), nil
}

func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.s.lock(ctx); err != nil {
		return 0, err
	}
	defer r.s.unlock()

	kept := r.s.doc.Events[:0]
	var removed int64
	for _, event := range r.s.doc.Events {
		if event.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	r.s.doc.Events = kept
	if removed == 0 {
		return 0, nil
	}
	return removed, r.s.flush()
}

// filtered returns matching events without copying. Caller holds the lock.
func (r *EventRepository) filtered(filter models.EventFilter) []*models.SecurityEvent {
	var matched []*models.SecurityEvent
	for _, event := range r.s.doc.Events {
		if filter.Kind != "" && event.Kind != filter.Kind {
			continue
		}
		if filter.AccountID != "" && event.AccountID != filter.AccountID {
			continue
		}
		if filter.Origin != "" && event.Origin != filter.Origin {
			continue
		}
		if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !event.Timestamp.Before(filter.Until) {
			continue
		}
		matched = append(matched, event)
	}
	return matched
}

type SettingRepository struct{ s *Store }

func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	if err := r.s.lock(ctx); err != nil {
		return "", err
	}
	defer r.s.unlock()

	value, ok := r.s.doc.Settings[key]
	if !ok {
		return "", domainErrors.ErrNotFound
	}
	return value, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	if err := r.s.lock(ctx); err != nil {
		return err
	}
	defer r.s.unlock()

	r.s.doc.Settings[key] = value
	return r.s.flush()
}
