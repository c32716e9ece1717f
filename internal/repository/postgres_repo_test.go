package repository

import (
	"testing"
)

// 各PostgresリポジトリがインターフェースをImplementsしていることを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ ListingRepository = (*PostgresListingRepo)(nil)
	var _ SavedListingRepository = (*PostgresSavedListingRepo)(nil)
	var _ HiddenListingRepository = (*PostgresHiddenListingRepo)(nil)
	var _ ListingOverrideRepository = (*PostgresOverrideRepo)(nil)
	var _ DealTrackerRepository = (*PostgresTrackerRepo)(nil)
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ PreferencesRepository = (*PostgresPreferencesRepo)(nil)
	var _ AlertRepository = (*PostgresAlertRepo)(nil)
}

// 各コンストラクタが正しく初期化されることを検証
func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresListingRepo(nil) == nil {
		t.Fatal("expected non-nil listing repo")
	}
	if NewPostgresSavedListingRepo(nil) == nil {
		t.Fatal("expected non-nil saved listing repo")
	}
	if NewPostgresHiddenListingRepo(nil) == nil {
		t.Fatal("expected non-nil hidden listing repo")
	}
	if NewPostgresOverrideRepo(nil) == nil {
		t.Fatal("expected non-nil override repo")
	}
	if NewPostgresTrackerRepo(nil) == nil {
		t.Fatal("expected non-nil tracker repo")
	}
	if NewPostgresUserRepo(nil) == nil {
		t.Fatal("expected non-nil user repo")
	}
	if NewPostgresPreferencesRepo(nil) == nil {
		t.Fatal("expected non-nil preferences repo")
	}
	if NewPostgresAlertRepo(nil) == nil {
		t.Fatal("expected non-nil alert repo")
	}
}
