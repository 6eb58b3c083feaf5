package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/github"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow keeps age-gate tests deterministic.
var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testUser(id int64, status model.AccountStatus, ageMonths int) *model.User {
	return &model.User{
		ID:              id,
		Username:        "user" + strconv.FormatInt(id, 10),
		Status:          status,
		GitHubCreatedAt: fixedNow.AddDate(0, 0, -ageMonths*30),
	}
}

type mockTagRepo struct {
	tags    map[string]*model.Tag
	created []*model.Tag
	renames []*model.Log
	deleted []string
}

var _ repository.TagRepository = (*mockTagRepo)(nil)

func newMockTagRepo(tags ...*model.Tag) *mockTagRepo {
	m := &mockTagRepo{tags: map[string]*model.Tag{}}
	for _, t := range tags {
		m.tags[t.Name] = t
	}
	return m
}

func (m *mockTagRepo) CreateTag(_ context.Context, tag *model.Tag) error {
	m.tags[tag.Name] = tag
	m.created = append(m.created, tag)
	return nil
}

func (m *mockTagRepo) GetTag(_ context.Context, name string) (*model.Tag, error) {
	t, ok := m.tags[name]
	if !ok {
		return nil, apperror.NotFound("tag", name)
	}
	return t, nil
}

func (m *mockTagRepo) ListTags(_ context.Context, kind model.TagKind) ([]model.Tag, error) {
	out := []model.Tag{}
	for _, t := range m.tags {
		if t.Kind == kind {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTagRepo) ListTagsBySuggester(_ context.Context, userID int64) ([]model.Tag, error) {
	out := []model.Tag{}
	for _, t := range m.tags {
		if t.SuggestedBy == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTagRepo) RenameTag(_ context.Context, oldTag, newTag *model.Tag, entry *model.Log) error {
	delete(m.tags, oldTag.Name)
	m.tags[newTag.Name] = newTag
	m.renames = append(m.renames, entry)
	return nil
}

func (m *mockTagRepo) DeleteUserTag(_ context.Context, name string, _ *model.Log) error {
	delete(m.tags, name)
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *mockTagRepo) DeletePrimaryTag(_ context.Context, name, replacement string, _ *model.Log) error {
	if _, ok := m.tags[replacement]; !ok {
		return apperror.NotFound("tag", replacement)
	}
	delete(m.tags, name)
	m.deleted = append(m.deleted, name)
	return nil
}

type mockRepoRepo struct {
	repos      map[int64]*model.Repository
	created    []*model.Repository
	refreshed  []*model.Repository
	touched    []int64
	deleteLogs []*model.Log
}

var _ repository.RepoRepository = (*mockRepoRepo)(nil)

func newMockRepoRepo(repos ...*model.Repository) *mockRepoRepo {
	m := &mockRepoRepo{repos: map[int64]*model.Repository{}}
	for _, r := range repos {
		m.repos[r.ID] = r
	}
	return m
}

func (m *mockRepoRepo) CreateRepo(_ context.Context, repo *model.Repository, _ []model.RepoLanguage, _ []model.RepoTag) error {
	m.repos[repo.ID] = repo
	m.created = append(m.created, repo)
	return nil
}

func (m *mockRepoRepo) GetRepo(_ context.Context, id int64) (*model.Repository, error) {
	r, ok := m.repos[id]
	if !ok {
		return nil, apperror.NotFound("repository", strconv.FormatInt(id, 10))
	}
	return r, nil
}

func (m *mockRepoRepo) FilterRepos(_ context.Context, _ repository.FilterOptions) ([]model.Repository, int, error) {
	out := []model.Repository{}
	for _, r := range m.repos {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockRepoRepo) ListReposBySuggester(_ context.Context, userID int64) ([]model.Repository, error) {
	out := []model.Repository{}
	for _, r := range m.repos {
		if r.SuggestedBy == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRepoRepo) RandomRepo(_ context.Context) (*model.Repository, error) {
	for _, r := range m.repos {
		return r, nil
	}
	return nil, apperror.NotFound("repository", "")
}

func (m *mockRepoRepo) RefreshRepo(_ context.Context, repo *model.Repository, _ []model.RepoLanguage) error {
	m.repos[repo.ID] = repo
	m.refreshed = append(m.refreshed, repo)
	return nil
}

func (m *mockRepoRepo) UpdateRepoCuration(_ context.Context, id int64, primaryTag string, _ []model.RepoTag, maintainLink string, _ *model.Log) error {
	r, ok := m.repos[id]
	if !ok {
		return apperror.NotFound("repository", strconv.FormatInt(id, 10))
	}
	r.PrimaryTag.Name = primaryTag
	r.MaintainLink = maintainLink
	return nil
}

func (m *mockRepoRepo) TouchRepo(_ context.Context, id int64) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockRepoRepo) DeleteRepo(_ context.Context, id int64, entry *model.Log) error {
	if _, ok := m.repos[id]; !ok {
		return apperror.NotFound("repository", strconv.FormatInt(id, 10))
	}
	delete(m.repos, id)
	m.deleteLogs = append(m.deleteLogs, entry)
	return nil
}

type mockLangRepo struct {
	ensured []model.Language
}

var _ repository.LanguageRepository = (*mockLangRepo)(nil)

func (m *mockLangRepo) EnsureLanguages(_ context.Context, langs []model.Language) error {
	m.ensured = append(m.ensured, langs...)
	return nil
}

func (m *mockLangRepo) ListLanguages(_ context.Context) ([]model.Language, error) {
	return m.ensured, nil
}

type mockUserRepo struct {
	users   map[int64]*model.User
	updates []*model.Log
	touched []int64
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo(users ...*model.User) *mockUserRepo {
	m := &mockUserRepo{users: map[int64]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) EnsureUser(_ context.Context, user *model.User) (*model.User, error) {
	if existing, ok := m.users[user.ID]; ok {
		return existing, nil
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *mockUserRepo) GetUser(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return u, nil
}

func (m *mockUserRepo) ListBannedUsers(_ context.Context) ([]model.User, error) {
	out := []model.User{}
	for _, u := range m.users {
		if u.Status == model.StatusBanned {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) TouchUser(_ context.Context, id int64) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockUserRepo) UpdateUserProfile(_ context.Context, id int64, username, avatarURL string) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	u.Username = username
	u.AvatarURL = avatarURL
	return nil
}

func (m *mockUserRepo) UpdateUserStatus(_ context.Context, id int64, status model.AccountStatus, banReason string, entry *model.Log) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	u.Status = status
	u.BanReason = banReason
	m.updates = append(m.updates, entry)
	return nil
}

type mockReportRepo struct {
	reports map[int64]*model.Report
	nextID  int64
	logs    []*model.Log
}

var _ repository.ReportRepository = (*mockReportRepo)(nil)

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: map[int64]*model.Report{}}
}

func (m *mockReportRepo) CreateReport(_ context.Context, report *model.Report) error {
	m.nextID++
	report.ID = m.nextID
	m.reports[report.ID] = report
	return nil
}

func (m *mockReportRepo) ListReports(_ context.Context) ([]model.Report, error) {
	out := []model.Report{}
	for _, r := range m.reports {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockReportRepo) GetReport(_ context.Context, id int64) (*model.Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, apperror.NotFound("report", strconv.FormatInt(id, 10))
	}
	return r, nil
}

func (m *mockReportRepo) DeleteReport(_ context.Context, id int64, entry *model.Log) error {
	if _, ok := m.reports[id]; !ok {
		return apperror.NotFound("report", strconv.FormatInt(id, 10))
	}
	delete(m.reports, id)
	m.logs = append(m.logs, entry)
	return nil
}

// mockGitHub dispatches to per-method funcs; unset methods fail the
// request.
type mockGitHub struct {
	getRepository     func(owner, name string) (*github.RepoInfo, error)
	getRepositoryByID func(id int64, since time.Time) (*github.RepoInfo, error)
	listLanguages     func(owner, name string) (map[string]int, error)
	getUserByID       func(id int64, since time.Time) (*github.UserInfo, error)
}

var _ github.Client = (*mockGitHub)(nil)

func (m *mockGitHub) GetRepository(_ context.Context, owner, name string) (*github.RepoInfo, error) {
	if m.getRepository == nil {
		return nil, github.ErrGone
	}
	return m.getRepository(owner, name)
}

func (m *mockGitHub) GetRepositoryByID(_ context.Context, id int64, since time.Time) (*github.RepoInfo, error) {
	if m.getRepositoryByID == nil {
		return nil, github.ErrGone
	}
	return m.getRepositoryByID(id, since)
}

func (m *mockGitHub) ListLanguages(_ context.Context, owner, name string) (map[string]int, error) {
	if m.listLanguages == nil {
		return nil, github.ErrGone
	}
	return m.listLanguages(owner, name)
}

func (m *mockGitHub) GetUserByID(_ context.Context, id int64, since time.Time) (*github.UserInfo, error) {
	if m.getUserByID == nil {
		return nil, github.ErrGone
	}
	return m.getUserByID(id, since)
}
