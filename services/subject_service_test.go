package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubjectSlugAndConflict(t *testing.T) {
	db := newTestDB(t)
	subjects := NewSubjectService(db, NewNoopCache())

	subject, err := subjects.CreateSubject(&CreateSubjectRequest{
		Name: "Computer Science 101",
		Code: "CS101",
	})
	require.NoError(t, err)
	assert.Equal(t, "computer-science-101", subject.Slug)
	assert.Equal(t, "#3498db", subject.Color)

	_, err = subjects.CreateSubject(&CreateSubjectRequest{
		Name: "Computer Science 101",
		Code: "CS102",
	})
	require.ErrorIs(t, err, ErrConflict)

	_, err = subjects.CreateSubject(&CreateSubjectRequest{
		Name: "Other Name",
		Code: "CS101",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestChapterSlugsUniqueWithinSubject(t *testing.T) {
	db := newTestDB(t)
	subjects := NewSubjectService(db, NewNoopCache())

	math, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Math", Code: "MTH"})
	require.NoError(t, err)
	physics, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Physics", Code: "PHY"})
	require.NoError(t, err)

	first, err := subjects.CreateChapter(&CreateChapterRequest{
		Name: "Introduction", SubjectID: math.ID, ChapterNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "introduction", first.Slug)

	// Same name inside the same subject gets a numbered suffix.
	second, err := subjects.CreateChapter(&CreateChapterRequest{
		Name: "Introduction", SubjectID: math.ID, ChapterNumber: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "introduction-1", second.Slug)

	// The same name under another subject keeps the plain slug.
	other, err := subjects.CreateChapter(&CreateChapterRequest{
		Name: "Introduction", SubjectID: physics.ID, ChapterNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "introduction", other.Slug)
}

func TestDeleteSubjectIsSoft(t *testing.T) {
	db := newTestDB(t)
	subjects := NewSubjectService(db, NewNoopCache())

	subject, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Short Lived", Code: "SL"})
	require.NoError(t, err)

	require.NoError(t, subjects.DeleteSubject(subject.ID))

	// Row still exists, but is hidden from the active listing.
	fetched, err := subjects.GetSubject(subject.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)

	active, err := subjects.ListActiveSubjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = subjects.GetSubjectBySlug(subject.Slug)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChapterMutationsRefreshSubjectList(t *testing.T) {
	db := newTestDB(t)
	subjects := NewSubjectService(db, newMemCache())
	ctx := context.Background()

	math, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Math", Code: "MTH"})
	require.NoError(t, err)

	// Prime the cache before any chapters exist.
	listed, err := subjects.ListActiveSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Empty(t, listed[0].Chapters)

	chapter, err := subjects.CreateChapter(&CreateChapterRequest{
		Name: "Introduction", SubjectID: math.ID, ChapterNumber: 1,
	})
	require.NoError(t, err)

	listed, err = subjects.ListActiveSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Len(t, listed[0].Chapters, 1, "new chapter must show up in the subject list")

	_, err = subjects.UpdateChapter(chapter.ID, &UpdateChapterRequest{Name: "Basics"})
	require.NoError(t, err)

	listed, err = subjects.ListActiveSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Basics", listed[0].Chapters[0].Name)

	require.NoError(t, subjects.DeleteChapter(chapter.ID))

	listed, err = subjects.ListActiveSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Chapters, "deactivated chapter must leave the subject list")
}

func TestUpdateChapterRenameKeepsSlugUnique(t *testing.T) {
	db := newTestDB(t)
	subjects := NewSubjectService(db, NewNoopCache())

	math, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Math", Code: "MTH"})
	require.NoError(t, err)

	intro, err := subjects.CreateChapter(&CreateChapterRequest{
		Name: "Introduction", SubjectID: math.ID, ChapterNumber: 1,
	})
	require.NoError(t, err)
	advanced, err := subjects.CreateChapter(&CreateChapterRequest{
		Name: "Advanced", SubjectID: math.ID, ChapterNumber: 2,
	})
	require.NoError(t, err)

	renamed, err := subjects.UpdateChapter(advanced.ID, &UpdateChapterRequest{Name: "Introduction"})
	require.NoError(t, err)
	assert.NotEqual(t, intro.Slug, renamed.Slug)
	assert.Equal(t, "introduction-1", renamed.Slug)
}

func TestSearchSubjects(t *testing.T) {
	db := newTestDB(t)
	subjects := NewSubjectService(db, NewNoopCache())

	_, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Computer Science", Code: "CS"})
	require.NoError(t, err)
	_, err = subjects.CreateSubject(&CreateSubjectRequest{
		Name: "History", Code: "HIS", Description: "from punch cards to computers",
	})
	require.NoError(t, err)
	retired, err := subjects.CreateSubject(&CreateSubjectRequest{Name: "Computing Archaeology", Code: "CA"})
	require.NoError(t, err)
	require.NoError(t, subjects.DeleteSubject(retired.ID))

	// Matches name and description, skips soft-deleted subjects.
	found, err := subjects.SearchSubjects("comput")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Computer Science", found[0].Name)
	assert.Equal(t, "History", found[1].Name)

	byCode, err := subjects.SearchSubjects("HIS")
	require.NoError(t, err)
	require.Len(t, byCode, 1)

	none, err := subjects.SearchSubjects("zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}
