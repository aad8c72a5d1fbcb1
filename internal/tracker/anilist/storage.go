package anilist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yoruanime/yoru/internal/database"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenStore persists the AniList session under fixed keys
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
	SaveProfile(profile *Profile) error
	LoadProfile() (*Profile, error)
	Clear() error
}

// NewTokenStore returns the store selected by tracker.anilist.token_store
func NewTokenStore(kind string, db *gorm.DB) (TokenStore, error) {
	switch kind {
	case "", "database":
		if db == nil {
			return nil, fmt.Errorf("database token store needs a database")
		}
		return NewDBStore(db), nil
	case "keyring":
		return NewKeyringStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

// DBStore keeps the session in the settings table
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a new database-backed store
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// SaveToken saves an OAuth2 token; nil deletes it
func (s *DBStore) SaveToken(token *oauth2.Token) error {
	if token == nil {
		return s.delete(database.SettingAniListToken)
	}
	return s.put(database.SettingAniListToken, token)
}

// LoadToken loads the stored token; a missing token is (nil, nil)
func (s *DBStore) LoadToken() (*oauth2.Token, error) {
	var token oauth2.Token
	ok, err := s.get(database.SettingAniListToken, &token)
	if err != nil || !ok {
		return nil, err
	}
	return &token, nil
}

// SaveProfile caches the viewer profile
func (s *DBStore) SaveProfile(profile *Profile) error {
	if profile == nil {
		return s.delete(database.SettingAniListProfile)
	}
	return s.put(database.SettingAniListProfile, profile)
}

// LoadProfile loads the cached profile; a missing profile is (nil, nil)
func (s *DBStore) LoadProfile() (*Profile, error) {
	var profile Profile
	ok, err := s.get(database.SettingAniListProfile, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

// Clear removes token and profile
func (s *DBStore) Clear() error {
	return s.db.Where("key IN ?", []string{database.SettingAniListToken, database.SettingAniListProfile}).
		Delete(&database.Setting{}).Error
}

func (s *DBStore) put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&database.Setting{Key: key, Value: string(data), UpdatedAt: time.Now()}).Error
}

func (s *DBStore) get(key string, out interface{}) (bool, error) {
	var setting database.Setting
	err := s.db.Where("key = ?", key).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if setting.Value == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(setting.Value), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *DBStore) delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&database.Setting{}).Error
}

const keyringService = "yoru"

// KeyringStore keeps the session in the OS keyring
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-backed store
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// SaveToken saves an OAuth2 token; nil deletes it
func (s *KeyringStore) SaveToken(token *oauth2.Token) error {
	if token == nil {
		return s.delete(database.SettingAniListToken)
	}
	return s.put(database.SettingAniListToken, token)
}

// LoadToken loads the stored token; a missing token is (nil, nil)
func (s *KeyringStore) LoadToken() (*oauth2.Token, error) {
	var token oauth2.Token
	ok, err := s.get(database.SettingAniListToken, &token)
	if err != nil || !ok {
		return nil, err
	}
	return &token, nil
}

// SaveProfile caches the viewer profile
func (s *KeyringStore) SaveProfile(profile *Profile) error {
	if profile == nil {
		return s.delete(database.SettingAniListProfile)
	}
	return s.put(database.SettingAniListProfile, profile)
}

// LoadProfile loads the cached profile; a missing profile is (nil, nil)
func (s *KeyringStore) LoadProfile() (*Profile, error) {
	var profile Profile
	ok, err := s.get(database.SettingAniListProfile, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

// Clear removes token and profile
func (s *KeyringStore) Clear() error {
	if err := s.delete(database.SettingAniListToken); err != nil {
		return err
	}
	return s.delete(database.SettingAniListProfile)
}

func (s *KeyringStore) put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) get(key string, out interface{}) (bool, error) {
	value, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s from keyring: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *KeyringStore) delete(key string) error {
	err := keyring.Delete(keyringService, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}
