package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
)

func newTagService(tags *mockTagRepo) *TagService {
	s := NewTagService(tags, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestTagCreate_AccountTooYoung(t *testing.T) {
	svc := newTagService(newMockTagRepo())

	_, err := svc.Create(context.Background(), testUser(1, model.StatusUser, 11), "frontend", model.TagUserGen)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
}

func TestTagCreate_Validation(t *testing.T) {
	svc := newTagService(newMockTagRepo())
	caller := testUser(1, model.StatusUser, 24)

	_, err := svc.Create(context.Background(), caller, "   ", model.TagUserGen)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Tag name can't be empty." {
		t.Errorf("blank name: error = %v", err)
	}

	_, err = svc.Create(context.Background(), caller, strings.Repeat("x", 26), model.TagUserGen)
	if !errors.As(err, &appErr) || appErr.Message != "Tag name can't be more than 25 characters." {
		t.Errorf("long name: error = %v", err)
	}
}

func TestTagCreate_NonOwnerForcedUserGen(t *testing.T) {
	tags := newMockTagRepo()
	svc := newTagService(tags)

	tag, err := svc.Create(context.Background(), testUser(1, model.StatusAdmin, 24), "Web Development", model.TagPrimary)
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if tag.Kind != model.TagUserGen {
		t.Errorf("kind = %s, want user_gen (only the owner mints primary tags)", tag.Kind)
	}

	tag, err = svc.Create(context.Background(), testUser(2, model.StatusOwner, 24), "Machine Learning", model.TagPrimary)
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if tag.Kind != model.TagPrimary {
		t.Errorf("owner kind = %s, want primary", tag.Kind)
	}
}

func TestTagCreate_ExistingSlugReturnsExisting(t *testing.T) {
	existing := &model.Tag{Name: "web_development", DisplayName: "Web Development", Kind: model.TagPrimary}
	tags := newMockTagRepo(existing)
	svc := newTagService(tags)

	// Different display casing, same slug.
	tag, err := svc.Create(context.Background(), testUser(1, model.StatusUser, 24), "WEB development", model.TagUserGen)
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if tag != existing {
		t.Error("should return the stored tag, not mint a duplicate")
	}
	if len(tags.created) != 0 {
		t.Error("no tag should have been created")
	}
}

func TestTagRename(t *testing.T) {
	owner := testUser(1, model.StatusOwner, 24)
	admin := testUser(2, model.StatusAdmin, 24)

	t.Run("missing tag", func(t *testing.T) {
		svc := newTagService(newMockTagRepo())
		_, err := svc.Rename(context.Background(), admin, "ghost", "Ghost")
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("primary tags are owner only", func(t *testing.T) {
		svc := newTagService(newMockTagRepo(primaryTag("Frontend")))
		_, err := svc.Rename(context.Background(), admin, "frontend", "Front End")
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Message != "Owner only." {
			t.Fatalf("error = %v, want Owner only.", err)
		}
	})

	t.Run("same slug is a no-op", func(t *testing.T) {
		svc := newTagService(newMockTagRepo(primaryTag("Frontend")))
		_, err := svc.Rename(context.Background(), owner, "frontend", "FRONTEND")
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Message != "Nothing is being updated." {
			t.Fatalf("error = %v, want Nothing is being updated.", err)
		}
	})

	t.Run("slug collision", func(t *testing.T) {
		svc := newTagService(newMockTagRepo(primaryTag("Frontend"), primaryTag("Backend")))
		_, err := svc.Rename(context.Background(), owner, "frontend", "Backend")
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Message != "Tag already exists." {
			t.Fatalf("error = %v, want Tag already exists.", err)
		}
	})

	t.Run("keeps provenance", func(t *testing.T) {
		original := &model.Tag{
			Name: "frontend", DisplayName: "Frontend", Kind: model.TagPrimary,
			SuggestedBy: 42, CreatedAt: fixedNow.AddDate(-1, 0, 0),
		}
		tags := newMockTagRepo(original)
		svc := newTagService(tags)

		renamed, err := svc.Rename(context.Background(), owner, "frontend", "Front End")
		if err != nil {
			t.Fatalf("Rename error = %v", err)
		}
		if renamed.Name != "front_end" {
			t.Errorf("slug = %s, want front_end", renamed.Name)
		}
		if renamed.SuggestedBy != 42 || !renamed.CreatedAt.Equal(original.CreatedAt) {
			t.Error("rename must keep the original suggester and creation time")
		}
		if len(tags.renames) != 1 || tags.renames[0].Action != "update (frontend -> front_end)" {
			t.Errorf("audit entry = %+v", tags.renames)
		}
	})
}

func TestTagDelete(t *testing.T) {
	owner := testUser(1, model.StatusOwner, 24)
	admin := testUser(2, model.StatusAdmin, 24)

	t.Run("user_gen by admin", func(t *testing.T) {
		tags := newMockTagRepo(&model.Tag{Name: "handy", Kind: model.TagUserGen})
		svc := newTagService(tags)
		if err := svc.Delete(context.Background(), admin, "handy", ""); err != nil {
			t.Fatalf("Delete error = %v", err)
		}
		if len(tags.deleted) != 1 || tags.deleted[0] != "handy" {
			t.Errorf("deleted = %v", tags.deleted)
		}
	})

	t.Run("primary by admin is rejected", func(t *testing.T) {
		svc := newTagService(newMockTagRepo(primaryTag("Frontend"), primaryTag("Web Development")))
		err := svc.Delete(context.Background(), admin, "frontend", "web_development")
		if !errors.Is(err, apperror.ErrForbidden) {
			t.Fatalf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("primary requires a replacement", func(t *testing.T) {
		svc := newTagService(newMockTagRepo(primaryTag("Frontend")))
		err := svc.Delete(context.Background(), owner, "frontend", "")
		if !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("error = %v, want ErrValidation", err)
		}
	})

	t.Run("replacement must differ", func(t *testing.T) {
		svc := newTagService(newMockTagRepo(primaryTag("Frontend")))
		err := svc.Delete(context.Background(), owner, "frontend", "Frontend")
		if !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("error = %v, want ErrValidation", err)
		}
	})

	t.Run("primary by owner with replacement", func(t *testing.T) {
		tags := newMockTagRepo(primaryTag("Frontend"), primaryTag("Web Development"))
		svc := newTagService(tags)
		if err := svc.Delete(context.Background(), owner, "frontend", "web_development"); err != nil {
			t.Fatalf("Delete error = %v", err)
		}
		if len(tags.deleted) != 1 || tags.deleted[0] != "frontend" {
			t.Errorf("deleted = %v", tags.deleted)
		}
	})
}
