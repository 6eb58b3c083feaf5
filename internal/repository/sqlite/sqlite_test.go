package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, id int64, status model.AccountStatus) *model.User {
	t.Helper()
	user, err := db.EnsureUser(context.Background(), &model.User{
		ID:              id,
		Username:        "user",
		GitHubCreatedAt: time.Now().AddDate(-2, 0, 0),
		Status:          status,
	})
	if err != nil {
		t.Fatalf("EnsureUser(%d) error = %v", id, err)
	}
	return user
}

func seedTag(t *testing.T, db *DB, display string, kind model.TagKind, by int64) *model.Tag {
	t.Helper()
	tag := &model.Tag{
		Name:        model.Slugify(display),
		DisplayName: display,
		Kind:        kind,
		SuggestedBy: by,
	}
	if err := db.CreateTag(context.Background(), tag); err != nil {
		t.Fatalf("CreateTag(%s) error = %v", display, err)
	}
	return tag
}

func seedRepo(t *testing.T, db *DB, id int64, stars int, primary *model.Tag, langs []string, tags []*model.Tag, by int64) *model.Repository {
	t.Helper()
	ctx := context.Background()

	langModels := make([]model.Language, 0, len(langs))
	langRows := make([]model.RepoLanguage, 0, len(langs))
	for i, l := range langs {
		langModels = append(langModels, model.Language{Name: l, DisplayName: l})
		langRows = append(langRows, model.RepoLanguage{RepoID: id, LanguageName: l, IsPrimary: i == 0})
	}
	if err := db.EnsureLanguages(ctx, langModels); err != nil {
		t.Fatalf("EnsureLanguages error = %v", err)
	}

	repo := &model.Repository{
		ID:          id,
		Author:      "octocat",
		Name:        "project",
		Stars:       stars,
		PrimaryTag:  *primary,
		SuggestedBy: by,
	}
	tagRows := make([]model.RepoTag, 0, len(tags))
	for _, tag := range tags {
		repo.Tags = append(repo.Tags, *tag)
		tagRows = append(tagRows, model.RepoTag{RepoID: id, TagName: tag.Name})
	}
	if err := db.CreateRepo(ctx, repo, langRows, tagRows); err != nil {
		t.Fatalf("CreateRepo(%d) error = %v", id, err)
	}
	return repo
}

func TestEnsureUser_NeverUnbans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedUser(t, db, 1, model.StatusUser)
	if err := db.UpdateUserStatus(ctx, 1, model.StatusBanned, "spam", &model.Log{
		Action: "update (user -> banned)", Target: model.UserTarget(1), EnactedBy: model.BotUserID,
	}); err != nil {
		t.Fatalf("UpdateUserStatus error = %v", err)
	}

	// Logging in again hands EnsureUser a fresh "user" row; the stored
	// banned row must win.
	got, err := db.EnsureUser(ctx, &model.User{ID: 1, Username: "user", Status: model.StatusUser})
	if err != nil {
		t.Fatalf("EnsureUser error = %v", err)
	}
	if got.Status != model.StatusBanned {
		t.Errorf("Status = %s, want banned", got.Status)
	}
	if got.BanReason != "spam" {
		t.Errorf("BanReason = %q, want spam", got.BanReason)
	}
}

func TestBotUserSeeded(t *testing.T) {
	db := newTestDB(t)

	bot, err := db.GetUser(context.Background(), model.BotUserID)
	if err != nil {
		t.Fatalf("GetUser(bot) error = %v", err)
	}
	if bot.Status != model.StatusBot {
		t.Errorf("bot status = %s, want bot", bot.Status)
	}
}

func TestListBannedUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedUser(t, db, 1, model.StatusUser)
	seedUser(t, db, 2, model.StatusUser)
	if err := db.UpdateUserStatus(ctx, 2, model.StatusBanned, "abuse", &model.Log{
		Action: "update (user -> banned)", Target: model.UserTarget(2), EnactedBy: 1,
	}); err != nil {
		t.Fatalf("UpdateUserStatus error = %v", err)
	}

	banned, err := db.ListBannedUsers(ctx)
	if err != nil {
		t.Fatalf("ListBannedUsers error = %v", err)
	}
	if len(banned) != 1 || banned[0].ID != 2 {
		t.Fatalf("banned = %+v, want just user 2", banned)
	}
}

func TestLogs_NewestFirstWithTotals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, model.StatusAdmin)

	for i := 0; i < 3; i++ {
		if err := db.CreateLog(ctx, &model.Log{
			Action: "delete", Target: model.TagTarget("old_tag"), EnactedBy: 1,
		}); err != nil {
			t.Fatalf("CreateLog error = %v", err)
		}
	}

	logs, total, err := db.ListLogs(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ListLogs error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[0].ID < logs[1].ID {
		t.Error("logs should be newest first")
	}

	logs, _, err = db.ListLogs(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListLogs page 2 error = %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("page 2 len = %d, want 1", len(logs))
	}
}

func TestListBySuggester(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedUser(t, db, 1, model.StatusUser)
	seedUser(t, db, 2, model.StatusUser)
	primary := seedTag(t, db, "Web Development", model.TagPrimary, 1)
	extra := seedTag(t, db, "Beginner Friendly", model.TagUserGen, 2)
	seedRepo(t, db, 100, 10, primary, []string{"go"}, nil, 1)
	seedRepo(t, db, 200, 20, primary, []string{"rust"}, []*model.Tag{extra}, 2)

	repos, err := db.ListReposBySuggester(ctx, 1)
	if err != nil {
		t.Fatalf("ListReposBySuggester error = %v", err)
	}
	if len(repos) != 1 || repos[0].ID != 100 {
		t.Fatalf("repos = %+v, want just repository 100", repos)
	}
	if len(repos[0].Languages) != 1 || repos[0].Languages[0] != "go" {
		t.Errorf("Languages = %v, want [go]", repos[0].Languages)
	}

	tags, err := db.ListTagsBySuggester(ctx, 1)
	if err != nil {
		t.Fatalf("ListTagsBySuggester error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "web_development" {
		t.Fatalf("tags = %+v, want just web_development", tags)
	}

	// A user with no suggestions gets empty slices, not errors.
	repos, err = db.ListReposBySuggester(ctx, 999)
	if err != nil || len(repos) != 0 {
		t.Errorf("ListReposBySuggester(999) = %v, %v, want empty", repos, err)
	}
	tags, err = db.ListTagsBySuggester(ctx, 999)
	if err != nil || len(tags) != 0 {
		t.Errorf("ListTagsBySuggester(999) = %v, %v, want empty", tags, err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUser(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
