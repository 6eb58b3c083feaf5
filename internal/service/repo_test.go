package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/github"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

func newRepoService(repos *mockRepoRepo, tags *mockTagRepo, gh *mockGitHub) *RepoService {
	s := NewRepoService(repos, tags, &mockLangRepo{}, gh, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func primaryTag(name string) *model.Tag {
	return &model.Tag{Name: model.Slugify(name), DisplayName: name, Kind: model.TagPrimary}
}

func TestSuggest_LanguageOrdering(t *testing.T) {
	repos := newMockRepoRepo()
	tags := newMockTagRepo(primaryTag("Web Development"))
	gh := &mockGitHub{
		getRepository: func(owner, name string) (*github.RepoInfo, error) {
			return &github.RepoInfo{ID: 1000, Author: owner, Name: name, Stars: 12}, nil
		},
		listLanguages: func(_, _ string) (map[string]int, error) {
			return map[string]int{"CSS": 3016, "JavaScript": 24743, "HTML": 783}, nil
		},
	}
	svc := newRepoService(repos, tags, gh)

	caller := testUser(1, model.StatusUser, 6)
	repo, existed, err := svc.Suggest(context.Background(), caller, "octocat", "site", "Web Development", nil)
	if err != nil {
		t.Fatalf("Suggest error = %v", err)
	}
	if existed {
		t.Error("existed = true for a first suggestion")
	}

	// Byte count descending decides the order and the primary flag.
	want := []string{"javascript", "css", "html"}
	if len(repo.Languages) != len(want) {
		t.Fatalf("languages = %v, want %v", repo.Languages, want)
	}
	for i := range want {
		if repo.Languages[i] != want[i] {
			t.Errorf("languages[%d] = %s, want %s", i, repo.Languages[i], want[i])
		}
	}
}

func TestSuggest_Idempotent(t *testing.T) {
	existing := &model.Repository{ID: 1000, Author: "octocat", Name: "site"}
	repos := newMockRepoRepo(existing)
	tags := newMockTagRepo(primaryTag("Web Development"))
	gh := &mockGitHub{
		getRepository: func(_, _ string) (*github.RepoInfo, error) {
			return &github.RepoInfo{ID: 1000, Author: "octocat", Name: "site"}, nil
		},
	}
	svc := newRepoService(repos, tags, gh)

	repo, existed, err := svc.Suggest(context.Background(), testUser(1, model.StatusUser, 6), "OctoCat", "site", "Web Development", nil)
	if err != nil {
		t.Fatalf("Suggest error = %v", err)
	}
	if !existed {
		t.Error("existed = false, want true for a repeat suggestion")
	}
	if repo != existing {
		t.Error("should return the stored row, not a fresh one")
	}
	if len(repos.created) != 0 {
		t.Error("a repeat suggestion must not create anything")
	}
}

func TestSuggest_AccountTooYoung(t *testing.T) {
	svc := newRepoService(newMockRepoRepo(), newMockTagRepo(primaryTag("CLI")), &mockGitHub{})

	_, _, err := svc.Suggest(context.Background(), testUser(1, model.StatusUser, 2), "octocat", "site", "CLI", nil)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
}

func TestSuggest_InvalidTags(t *testing.T) {
	tags := newMockTagRepo(primaryTag("CLI"))
	gh := &mockGitHub{
		getRepository: func(_, _ string) (*github.RepoInfo, error) {
			return &github.RepoInfo{ID: 1}, nil
		},
	}
	svc := newRepoService(newMockRepoRepo(), tags, gh)
	caller := testUser(1, model.StatusUser, 6)

	// Unknown primary tag.
	_, _, err := svc.Suggest(context.Background(), caller, "octocat", "site", "no_such_tag", nil)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Invalid tags." {
		t.Errorf("unknown primary: error = %v, want Invalid tags.", err)
	}

	// A user_gen tag cannot serve as primary.
	tags.tags["handy"] = &model.Tag{Name: "handy", Kind: model.TagUserGen}
	_, _, err = svc.Suggest(context.Background(), caller, "octocat", "site", "handy", nil)
	if !errors.As(err, &appErr) || appErr.Message != "Invalid tags." {
		t.Errorf("user_gen primary: error = %v, want Invalid tags.", err)
	}

	// Unknown extra tag.
	_, _, err = svc.Suggest(context.Background(), caller, "octocat", "site", "CLI", []string{"missing"})
	if !errors.As(err, &appErr) || appErr.Message != "Invalid tags." {
		t.Errorf("unknown extra: error = %v, want Invalid tags.", err)
	}
}

func TestSuggest_UpstreamFailure(t *testing.T) {
	gh := &mockGitHub{
		getRepository: func(_, _ string) (*github.RepoInfo, error) {
			return nil, github.ErrGone
		},
	}
	svc := newRepoService(newMockRepoRepo(), newMockTagRepo(primaryTag("CLI")), gh)

	_, _, err := svc.Suggest(context.Background(), testUser(1, model.StatusUser, 6), "octocat", "gone", "CLI", nil)
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
}

func TestRefresh_FreshRowSkipsGitHub(t *testing.T) {
	repo := &model.Repository{ID: 1, LastUpdated: fixedNow.Add(-time.Hour)}
	gh := &mockGitHub{
		getRepositoryByID: func(_ int64, _ time.Time) (*github.RepoInfo, error) {
			t.Fatal("fresh rows must not hit GitHub")
			return nil, nil
		},
	}
	svc := newRepoService(newMockRepoRepo(repo), newMockTagRepo(), gh)

	got, err := svc.Refresh(context.Background(), 1)
	if err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if got != repo {
		t.Error("fresh row should come back unchanged")
	}
}

func TestRefresh_NotModifiedTouches(t *testing.T) {
	repos := newMockRepoRepo(&model.Repository{ID: 1, LastUpdated: fixedNow.Add(-48 * time.Hour)})
	gh := &mockGitHub{
		getRepositoryByID: func(_ int64, _ time.Time) (*github.RepoInfo, error) {
			return nil, github.ErrNotModified
		},
	}
	svc := newRepoService(repos, newMockTagRepo(), gh)

	if _, err := svc.Refresh(context.Background(), 1); err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if len(repos.touched) != 1 || repos.touched[0] != 1 {
		t.Errorf("touched = %v, want [1]", repos.touched)
	}
	if len(repos.refreshed) != 0 {
		t.Error("an unmodified repository must not be rewritten")
	}
}

func TestRefresh_GoneCascadesDelete(t *testing.T) {
	repos := newMockRepoRepo(&model.Repository{ID: 1, LastUpdated: fixedNow.Add(-48 * time.Hour)})
	gh := &mockGitHub{
		getRepositoryByID: func(_ int64, _ time.Time) (*github.RepoInfo, error) {
			return nil, github.ErrGone
		},
	}
	svc := newRepoService(repos, newMockTagRepo(), gh)

	_, err := svc.Refresh(context.Background(), 1)
	if !errors.Is(err, apperror.ErrGone) {
		t.Fatalf("error = %v, want ErrGone", err)
	}
	if _, ok := repos.repos[1]; ok {
		t.Error("repository should have been deleted locally")
	}
	if len(repos.deleteLogs) != 1 {
		t.Fatalf("deleteLogs = %d entries, want 1", len(repos.deleteLogs))
	}
	entry := repos.deleteLogs[0]
	if entry.Action != "delete (auto)" {
		t.Errorf("action = %q, want delete (auto)", entry.Action)
	}
	if entry.EnactedBy != model.BotUserID {
		t.Errorf("enacted_by = %d, want the bot user", entry.EnactedBy)
	}
}

func TestRefresh_SyncsScalarFields(t *testing.T) {
	repos := newMockRepoRepo(&model.Repository{ID: 1, Stars: 10, LastUpdated: fixedNow.Add(-48 * time.Hour)})
	gh := &mockGitHub{
		getRepositoryByID: func(_ int64, _ time.Time) (*github.RepoInfo, error) {
			return &github.RepoInfo{ID: 1, Author: "octocat", Name: "site", Stars: 99}, nil
		},
		listLanguages: func(_, _ string) (map[string]int, error) {
			return map[string]int{"Go": 100}, nil
		},
	}
	svc := newRepoService(repos, newMockTagRepo(), gh)

	got, err := svc.Refresh(context.Background(), 1)
	if err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if got.Stars != 99 {
		t.Errorf("stars = %d, want 99", got.Stars)
	}
	if len(repos.refreshed) != 1 {
		t.Errorf("refreshed = %d rows, want 1", len(repos.refreshed))
	}
}

func TestRefresh_Missing(t *testing.T) {
	svc := newRepoService(newMockRepoRepo(), newMockTagRepo(), &mockGitHub{})

	_, err := svc.Refresh(context.Background(), 404)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_MaintainLinkValidation(t *testing.T) {
	repos := newMockRepoRepo(&model.Repository{ID: 1, PrimaryTag: *primaryTag("CLI")})
	svc := newRepoService(repos, newMockTagRepo(primaryTag("CLI")), &mockGitHub{})
	admin := testUser(9, model.StatusAdmin, 24)

	_, err := svc.Update(context.Background(), admin, 1, "CLI", nil, "not a url")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Maintain link must be a valid URL." {
		t.Fatalf("error = %v, want the maintain link message", err)
	}

	got, err := svc.Update(context.Background(), admin, 1, "CLI", nil, "https://example.com/fork")
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if got.MaintainLink != "https://example.com/fork" {
		t.Errorf("maintain link = %q", got.MaintainLink)
	}
}

func TestFilter_ClampsInputs(t *testing.T) {
	repos := newMockRepoRepo()
	svc := newRepoService(repos, newMockTagRepo(), &mockGitHub{})

	// Degenerate inputs must not error, just clamp.
	_, _, err := svc.Filter(context.Background(), repository.FilterOptions{
		Limit: -5, Page: 0, MinStars: -1, MaxStars: 10, HasMaxStars: true,
	})
	if err != nil {
		t.Fatalf("Filter error = %v", err)
	}
}

func TestParseSortKey(t *testing.T) {
	for v, want := range map[string]repository.SortKey{
		"":      repository.SortNone,
		"stars": repository.SortStars,
		"date":  repository.SortDate,
	} {
		got, err := ParseSortKey(v)
		if err != nil || got != want {
			t.Errorf("ParseSortKey(%q) = (%v, %v), want %v", v, got, err, want)
		}
	}
	if _, err := ParseSortKey("forks"); err == nil {
		t.Error("ParseSortKey(forks) should fail")
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Errorf("ParseID(42) = (%d, %v)", id, err)
	}
	if _, err := ParseID("abc"); err == nil {
		t.Error("ParseID(abc) should fail")
	}
}
