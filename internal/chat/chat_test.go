package chat

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/taskdesk/internal/db"
)

func testDirectory() db.Directory {
	return db.Directory{
		"owner":  {Username: "owner", Role: "Owner", Branches: []string{"Mzone", "UNIPRO"}},
		"worker": {Username: "worker", Role: "Worker", Branches: []string{"Mzone"}},
		"other":  {Username: "other", Role: "Worker", Branches: []string{"Other"}},
	}
}

func TestResolveRecipientsUsername(t *testing.T) {
	got := ResolveRecipients("worker", "@owner hello", testDirectory())
	assert.Equal(t, []string{"owner", "worker"}, got)
}

func TestResolveRecipientsBranch(t *testing.T) {
	got := ResolveRecipients("other", "@Mzone ping", testDirectory())
	assert.Equal(t, []string{"other", "owner", "worker"}, got)
}

func TestResolveRecipientsUnresolvedIsPublic(t *testing.T) {
	assert.Empty(t, ResolveRecipients("worker", "hello @nobody", testDirectory()))
	assert.Empty(t, ResolveRecipients("worker", "no tags here", testDirectory()))
}

func TestResolveRecipientsUsernameWinsOverBranch(t *testing.T) {
	dir := testDirectory()
	dir["Other"] = &db.User{Username: "Other"}
	got := ResolveRecipients("worker", "@Other", dir)
	assert.Equal(t, []string{"Other", "worker"}, got)
}

func TestMentionsDeduplicates(t *testing.T) {
	assert.Equal(t, []string{"a", "b_2"}, Mentions("@a @b_2 and @a again, mail x@a too"))
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"note.txt":              "note.txt",
		"../../etc/passwd":      "etc_passwd",
		"my report (final).pdf": "my_report_final.pdf",
		`C:\temp\x.png`:         "C_temp_x.png",
		"...":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

type fixture struct {
	svc       *Service
	store     db.Store
	uploadDir string
}

func setup(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := db.NewFileStore(filepath.Join(dir, "users.json"), filepath.Join(dir, "messages.json"))
	require.NoError(t, err)
	for _, u := range testDirectory() {
		require.NoError(t, store.UpsertUser(context.Background(), u))
	}
	uploadDir := filepath.Join(dir, "uploads")
	uploads, err := NewUploads(uploadDir, 1024)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return fixture{svc: NewService(store, uploads, logger), store: store, uploadDir: uploadDir}
}

func TestPostRejectsEmptyMessage(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Post(context.Background(), "worker", "   ", nil)
	assert.ErrorIs(t, err, ErrNoContent)

	msgs, err := f.store.Messages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestVisibilityAndAttachments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	msg, err := f.svc.Post(ctx, "worker", "@owner secret", &Attachment{Name: "note.txt", Body: strings.NewReader("hello")})
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "worker"}, msg.Recipients)
	assert.Equal(t, []string{"uploads/note.txt"}, msg.Attachments)

	data, err := os.ReadFile(filepath.Join(f.uploadDir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = f.svc.Post(ctx, "other", "public hello", nil)
	require.NoError(t, err)

	ownerView, err := f.svc.ListVisible(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, ownerView, 2)
	assert.Equal(t, "@owner secret", ownerView[0].Text)

	otherView, err := f.svc.ListVisible(ctx, "other")
	require.NoError(t, err)
	require.Len(t, otherView, 1)
	assert.Equal(t, "public hello", otherView[0].Text)

	ok, err := f.svc.CanSeeAttachment(ctx, "owner", "uploads/note.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.CanSeeAttachment(ctx, "other", "uploads/note.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttachmentOnlyMessage(t *testing.T) {
	f := setup(t)
	msg, err := f.svc.Post(context.Background(), "worker", "", &Attachment{Name: "a.txt", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Empty(t, msg.Recipients)
	assert.Len(t, msg.Attachments, 1)
}

func TestAttachmentTooLarge(t *testing.T) {
	f := setup(t)
	big := strings.NewReader(strings.Repeat("x", 2048))
	_, err := f.svc.Post(context.Background(), "worker", "big", &Attachment{Name: "big.bin", Body: big})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.NoFileExists(t, filepath.Join(f.uploadDir, "big.bin"))
}

func TestAttachmentTooLargeKeepsExistingFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Post(ctx, "other", "first", &Attachment{Name: "note.txt", Body: strings.NewReader("original")})
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, "other", "second", &Attachment{Name: "note.txt", Body: strings.NewReader(strings.Repeat("x", 2048))})
	assert.ErrorIs(t, err, ErrTooLarge)

	data, err := os.ReadFile(filepath.Join(f.uploadDir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAttachmentNameCollisionAcrossAudiences(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	public, err := f.svc.Post(ctx, "other", "for everyone", &Attachment{Name: "note.txt", Body: strings.NewReader("public content")})
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/note.txt"}, public.Attachments)

	private, err := f.svc.Post(ctx, "worker", "@owner private", &Attachment{Name: "note.txt", Body: strings.NewReader("secret")})
	require.NoError(t, err)
	require.Len(t, private.Attachments, 1)
	rel := private.Attachments[0]
	assert.NotEqual(t, "uploads/note.txt", rel)
	assert.Regexp(t, `^uploads/note-[0-9a-f]{8}\.txt$`, rel)

	data, err := os.ReadFile(filepath.Join(f.uploadDir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "public content", string(data))

	ok, err := f.svc.CanSeeAttachment(ctx, "other", rel)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttachmentSameAudienceOverwrites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Post(ctx, "worker", "@owner v1", &Attachment{Name: "plan.txt", Body: strings.NewReader("v1")})
	require.NoError(t, err)
	msg, err := f.svc.Post(ctx, "worker", "@owner v2", &Attachment{Name: "plan.txt", Body: strings.NewReader("v2")})
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/plan.txt"}, msg.Attachments)

	data, err := os.ReadFile(filepath.Join(f.uploadDir, "plan.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestListVisibleSince(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	f.svc.now = func() time.Time { return base }
	_, err := f.svc.Post(ctx, "owner", "old", nil)
	require.NoError(t, err)
	f.svc.now = func() time.Time { return base.Add(time.Minute) }
	_, err = f.svc.Post(ctx, "owner", "new", nil)
	require.NoError(t, err)

	msgs, err := f.svc.ListVisibleSince(ctx, "worker", base)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Text)
}

func TestUploadsPathRejectsTraversal(t *testing.T) {
	u, err := NewUploads(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Empty(t, u.Path("../secret"))
	assert.Empty(t, u.Path(""))
	assert.NotEmpty(t, u.Path("note.txt"))
}
