package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gitsage/tag2changelog/internal/pkg/emitter"
	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
	"github.com/gitsage/tag2changelog/internal/pkg/git"
	"github.com/gitsage/tag2changelog/internal/pkg/probe"
	"github.com/gitsage/tag2changelog/internal/pkg/ui"
	"github.com/gitsage/tag2changelog/internal/pkg/version"
)

const (
	rootSHA = "1111111111111111111111111111111111111111"
	tipSHA  = "2222222222222222222222222222222222222222"
)

// MockGitClient is a mock implementation of git.Client
type MockGitClient struct {
	mock.Mock
}

func (m *MockGitClient) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) RootCommits(ctx context.Context, rev string) ([]string, error) {
	args := m.Called(ctx, rev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGitClient) ResolveRevision(ctx context.Context, rev string) (string, error) {
	args := m.Called(ctx, rev)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) MergedTags(ctx context.Context, rev string) ([]string, error) {
	args := m.Called(ctx, rev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGitClient) CountCommits(ctx context.Context, from, to string) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

// MockEmitter is a mock implementation of emitter.Emitter
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, s emitter.Stanza) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockUIManager is a mock implementation of ui.Manager
type MockUIManager struct {
	mock.Mock
}

func (m *MockUIManager) DisplayPlan(summary *ui.Summary) error {
	args := m.Called(summary)
	return args.Error(0)
}

func (m *MockUIManager) ShowSuccess(message string) {
	m.Called(message)
}

// MockLocker is a mock implementation of Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockLocker) Release() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ git.Client      = (*MockGitClient)(nil)
	_ emitter.Emitter = (*MockEmitter)(nil)
	_ ui.Manager      = (*MockUIManager)(nil)
	_ Locker          = (*MockLocker)(nil)
)

func testEnv() *probe.Environment {
	return &probe.Environment{
		Dir:           "/src/hello",
		ChangelogPath: "/src/hello/debian/changelog",
		Package:       "hello",
		Distribution:  "bookworm",
		Urgency:       "low",
		AuthorName:    "Jane Maintainer",
		AuthorEmail:   "jane@example.org",
	}
}

func mockRepo(tags ...string) *MockGitClient {
	m := new(MockGitClient)
	m.On("RootCommits", mock.Anything, git.HEAD).Return([]string{rootSHA}, nil)
	m.On("ResolveRevision", mock.Anything, git.HEAD).Return(tipSHA, nil)
	m.On("MergedTags", mock.Anything, git.HEAD).Return(tags, nil)
	return m
}

func stanza(from, to, v string) emitter.Stanza {
	env := testEnv()
	return emitter.Stanza{
		From:          from,
		To:            to,
		Version:       v,
		Distribution:  env.Distribution,
		Urgency:       env.Urgency,
		Package:       env.Package,
		AuthorName:    env.AuthorName,
		AuthorEmail:   env.AuthorEmail,
		ChangelogPath: env.ChangelogPath,
	}
}

// recordEmits makes the mock accept every stanza and returns the slice it
// records them into.
func recordEmits(m *MockEmitter) *[]emitter.Stanza {
	var got []emitter.Stanza
	m.On("Emit", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = append(got, args.Get(1).(emitter.Stanza))
	}).Return(nil)
	return &got
}

func newService(gitClient git.Client, em emitter.Emitter, uiManager ui.Manager, locker Locker) *ChangelogService {
	return NewChangelogService(gitClient, version.NewNativeComparator(), em, uiManager, testEnv(), locker)
}

func TestRun_WritesStanzasInVersionOrder(t *testing.T) {
	gitClient := mockRepo("v2.0", "v1.0", "v1.1")
	em := new(MockEmitter)
	got := recordEmits(em)
	uiManager := new(MockUIManager)
	uiManager.On("ShowSuccess", mock.Anything).Return()
	locker := new(MockLocker)
	locker.On("Acquire").Return(nil).Once()
	locker.On("Release").Return(nil).Once()

	service := newService(gitClient, em, uiManager, locker)
	plan, err := service.Run(context.Background(), &RunOptions{Patterns: []string{"s/^v//"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "1.1", "2.0"}, plan.Versions())
	assert.Equal(t, []emitter.Stanza{
		stanza(rootSHA, "v1.0", "1.0"),
		stanza("v1.0", "v1.1", "1.1"),
		stanza("v1.1", "v2.0", "2.0"),
	}, *got)

	locker.AssertExpectations(t)
	uiManager.AssertCalled(t, "ShowSuccess", "wrote 3 changelog entries to /src/hello/debian/changelog")
	gitClient.AssertNotCalled(t, "CountCommits", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_BadTagAbortsBeforeEmitting(t *testing.T) {
	gitClient := mockRepo("v1.0", "bad_tag", "v2.0")
	em := new(MockEmitter)
	uiManager := new(MockUIManager)
	locker := new(MockLocker)

	service := newService(gitClient, em, uiManager, locker)
	_, err := service.Run(context.Background(), &RunOptions{
		Patterns: []string{"s/^v//", "s/bad_tag/???/"},
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadVersion))
	assert.Contains(t, err.Error(), "bad_tag")
	em.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	locker.AssertNotCalled(t, "Acquire")
	uiManager.AssertNotCalled(t, "ShowSuccess", mock.Anything)
}

func TestRun_Snapshot(t *testing.T) {
	gitClient := mockRepo("v1.0", "v2.0")
	gitClient.On("CountCommits", mock.Anything, "v2.0", tipSHA).Return(3, nil)
	em := new(MockEmitter)
	got := recordEmits(em)
	uiManager := new(MockUIManager)
	uiManager.On("ShowSuccess", mock.Anything).Return()

	service := newService(gitClient, em, uiManager, nil)
	plan, err := service.Run(context.Background(), &RunOptions{
		Patterns: []string{"s/^v//"},
		Snapshot: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "2.0", "2.0+3"}, plan.Versions())
	require.Len(t, *got, 3)
	assert.Equal(t, stanza("v2.0", tipSHA, "2.0+3"), (*got)[2])
}

func TestRun_SnapshotAtTag(t *testing.T) {
	gitClient := mockRepo("v1.0")
	gitClient.On("CountCommits", mock.Anything, "v1.0", tipSHA).Return(0, nil)
	em := new(MockEmitter)
	got := recordEmits(em)
	uiManager := new(MockUIManager)
	uiManager.On("ShowSuccess", mock.Anything).Return()

	service := newService(gitClient, em, uiManager, nil)
	plan, err := service.Run(context.Background(), &RunOptions{
		Patterns: []string{"s/^v//"},
		Snapshot: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, plan.Versions())
	assert.Len(t, *got, 1)
}

func TestRun_RerunIsIdentical(t *testing.T) {
	run := func() []emitter.Stanza {
		gitClient := mockRepo("v1.1", "v1.0")
		em := new(MockEmitter)
		got := recordEmits(em)
		uiManager := new(MockUIManager)
		uiManager.On("ShowSuccess", mock.Anything).Return()

		_, err := newService(gitClient, em, uiManager, nil).
			Run(context.Background(), &RunOptions{Patterns: []string{"s/^v//"}})
		require.NoError(t, err)
		return *got
	}

	assert.Equal(t, run(), run())
}

func TestRun_EmitterFailureStops(t *testing.T) {
	gitClient := mockRepo("v1.0", "v1.1", "v2.0")
	em := new(MockEmitter)
	emitErr := apperrors.NewEmitterError("1.1", "v1.0", "v1.1", errors.New("exit status 1"), "boom")
	em.On("Emit", mock.Anything, stanza(rootSHA, "v1.0", "1.0")).Return(nil).Once()
	em.On("Emit", mock.Anything, stanza("v1.0", "v1.1", "1.1")).Return(emitErr).Once()
	uiManager := new(MockUIManager)
	locker := new(MockLocker)
	locker.On("Acquire").Return(nil)
	locker.On("Release").Return(nil)

	service := newService(gitClient, em, uiManager, locker)
	_, err := service.Run(context.Background(), &RunOptions{Patterns: []string{"s/^v//"}})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrEmitterFailed))
	em.AssertNumberOfCalls(t, "Emit", 2)
	locker.AssertCalled(t, "Release")
	uiManager.AssertNotCalled(t, "ShowSuccess", mock.Anything)
}

func TestRun_DryRun(t *testing.T) {
	gitClient := mockRepo("v1.0", "v1.1")
	em := new(MockEmitter)
	uiManager := new(MockUIManager)
	var shown *ui.Summary
	uiManager.On("DisplayPlan", mock.Anything).Run(func(args mock.Arguments) {
		shown = args.Get(0).(*ui.Summary)
	}).Return(nil)
	locker := new(MockLocker)

	service := newService(gitClient, em, uiManager, locker)
	plan, err := service.Run(context.Background(), &RunOptions{
		Patterns: []string{"s/^v//"},
		DryRun:   true,
	})

	require.NoError(t, err)
	require.NotNil(t, shown)
	assert.Same(t, plan, shown.Plan)
	assert.Equal(t, "hello", shown.Package)
	assert.Equal(t, "Jane Maintainer <jane@example.org>", shown.Author)
	em.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	locker.AssertNotCalled(t, "Acquire")
}

func TestRun_LockHeld(t *testing.T) {
	gitClient := mockRepo("v1.0")
	em := new(MockEmitter)
	uiManager := new(MockUIManager)
	locker := new(MockLocker)
	locker.On("Acquire").Return(apperrors.New(apperrors.ErrLockHeld, "changelog is locked"))

	service := newService(gitClient, em, uiManager, locker)
	_, err := service.Run(context.Background(), &RunOptions{Patterns: []string{"s/^v//"}})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrLockHeld))
	em.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	locker.AssertNotCalled(t, "Release")
}

func TestRun_ReleaseErrorReported(t *testing.T) {
	gitClient := mockRepo("v1.0")
	em := new(MockEmitter)
	recordEmits(em)
	uiManager := new(MockUIManager)
	uiManager.On("ShowSuccess", mock.Anything).Return()
	locker := new(MockLocker)
	locker.On("Acquire").Return(nil)
	locker.On("Release").Return(errors.New("unlink failed"))

	_, err := newService(gitClient, em, uiManager, locker).
		Run(context.Background(), &RunOptions{Patterns: []string{"s/^v//"}})
	assert.EqualError(t, err, "unlink failed")
}

func TestRun_NoTags(t *testing.T) {
	gitClient := mockRepo()
	service := newService(gitClient, new(MockEmitter), new(MockUIManager), nil)

	_, err := service.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoTags))
}

func TestRun_FilterRemovesAll(t *testing.T) {
	gitClient := mockRepo("v1.0", "v1.1")
	service := newService(gitClient, new(MockEmitter), new(MockUIManager), nil)

	_, err := service.Run(context.Background(), &RunOptions{Filter: "^rel-"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoTags))
}

func TestRun_BadPattern(t *testing.T) {
	gitClient := new(MockGitClient)
	service := newService(gitClient, new(MockEmitter), new(MockUIManager), nil)

	_, err := service.Run(context.Background(), &RunOptions{Patterns: []string{"y/abc/xy/"}})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadPattern))
	gitClient.AssertNotCalled(t, "RootCommits", mock.Anything, mock.Anything)
}

func TestRun_Cancelled(t *testing.T) {
	gitClient := mockRepo("v1.0", "v1.1")
	em := new(MockEmitter)
	ctx, cancel := context.WithCancel(context.Background())
	em.On("Emit", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil)

	_, err := newService(gitClient, em, new(MockUIManager), nil).
		Run(ctx, &RunOptions{Patterns: []string{"s/^v//"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	em.AssertNumberOfCalls(t, "Emit", 1)
}
