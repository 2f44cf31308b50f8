// Package filestore is the zero-dependency store backend: one YAML snapshot on
// disk, guarded by an in-process lock. Suited to single-instance deployments
// and local development; every mutation rewrites the snapshot atomically.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
)

type document struct {
	Identities   map[string]*models.Identity    `yaml:"identities"`
	PendingLinks map[string]*models.PendingLink `yaml:"pending_links"`
	Bans         map[string]*models.Ban         `yaml:"bans"`
	Events       []*models.SecurityEvent        `yaml:"events"`
	Settings     map[string]string              `yaml:"settings"`
}

type Store struct {
	path   string
	logger *zap.Logger

	mu  chan struct{} // binary semaphore; held across read-modify-write
	doc *document
}

var _ repository.Store = (*Store)(nil)

// NewStore loads the snapshot at cfg.Path, creating it when absent.
func NewStore(cfg config.FileConfig, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   cfg.Path,
		logger: logger,
		mu:     make(chan struct{}, 1),
		doc: &document{
			Identities:   make(map[string]*models.Identity),
			PendingLinks: make(map[string]*models.PendingLink),
			Bans:         make(map[string]*models.Ban),
			Settings:     make(map[string]string),
		},
	}

	data, err := os.ReadFile(cfg.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read store file: %w", err)
	default:
		if err := yaml.Unmarshal(data, s.doc); err != nil {
			return nil, fmt.Errorf("decode store file: %w", err)
		}
		s.ensureMaps()
	}

	logger.Info("file store ready", zap.String("path", cfg.Path))
	return s, nil
}

func (s *Store) ensureMaps() {
	if s.doc.Identities == nil {
		s.doc.Identities = make(map[string]*models.Identity)
	}
	if s.doc.PendingLinks == nil {
		s.doc.PendingLinks = make(map[string]*models.PendingLink)
	}
	if s.doc.Bans == nil {
		s.doc.Bans = make(map[string]*models.Ban)
	}
	if s.doc.Settings == nil {
		s.doc.Settings = make(map[string]string)
	}
}

// lock acquires the store lock or fails when ctx expires first.
func (s *Store) lock(ctx context.Context) error {
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() {
	<-s.mu
}

// flush writes the snapshot via a temp file and rename, so a crash mid-write
// never truncates the live file. Caller holds the lock.
func (s *Store) flush() error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

func (s *Store) Identities() repository.IdentityRepository      { return &IdentityRepository{s} }
func (s *Store) PendingLinks() repository.PendingLinkRepository { return &PendingLinkRepository{s} }
func (s *Store) Bans() repository.BanRepository                 { return &BanRepository{s} }
func (s *Store) Events() repository.EventRepository             { return &EventRepository{s} }
func (s *Store) Settings() repository.SettingRepository         { return &SettingRepository{s} }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *Store) Close() error {
	ctx := context.Background()
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return s.flush()
}
