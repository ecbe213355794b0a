package mailfile

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

func TestLoadPlainMessage(t *testing.T) {
	email, err := Load(filepath.Join("testdata", "trusted.eml"))
	require.NoError(t, err)

	assert.Equal(t, "<report-1@example.com>", email.ID)
	assert.Equal(t, "Alice <alice@example.com>", email.From)
	assert.Equal(t, "Quarterly report ✓", email.Subject)
	assert.Equal(t, []string{"bob@example.net", "carol@example.net"}, email.To)
	assert.Contains(t, email.Body, "quarterly report is attached")
	assert.False(t, email.HTML)
	assert.Empty(t, email.Attachments)
	assert.Equal(t, filepath.Join("testdata", "trusted.eml"), email.Source)
	assert.NotEmpty(t, email.Raw)

	spf, ok := email.Header("received-spf")
	assert.True(t, ok)
	assert.Contains(t, spf, "pass")

	received := email.HeaderValues("Received")
	require.Len(t, received, 1)
	assert.Contains(t, received[0], "Wed, 17 Feb 2021 10:00:05 +0100")
}

func TestLoadMultipartMessage(t *testing.T) {
	email, err := Load(filepath.Join("testdata", "spam.eml"))
	require.NoError(t, err)

	assert.True(t, email.HTML)
	assert.Contains(t, email.Body, "<script>")
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "claim.exe", email.Attachments[0].FileName)
	assert.Equal(t, "application/octet-stream", email.Attachments[0].ContentType)
	assert.Positive(t, email.Attachments[0].Size)
}

func TestValidateRequiresReceivedAndFrom(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unrelayed.eml"))
	assert.ErrorIs(t, err, ErrInvalidEmail)

	assert.ErrorIs(t, Validate(&core.Email{Headers: map[string][]string{"Received": {"x"}}}), ErrInvalidEmail)
	assert.NoError(t, Validate(&core.Email{Headers: map[string][]string{"Received": {"x"}, "From": {"a@b.c"}}}))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.eml"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidEmail)
}

func TestReadMbox(t *testing.T) {
	path := filepath.Join("testdata", "archive.mbox")
	require.True(t, IsMbox(path))
	assert.False(t, IsMbox(filepath.Join("testdata", "trusted.eml")))

	emails, skipped, err := ReadMbox(path)
	require.NoError(t, err)

	require.Len(t, emails, 2)
	assert.Equal(t, "first", emails[0].Subject)
	assert.Equal(t, path+"#1", emails[0].Source)
	assert.Equal(t, "third", emails[1].Subject)
	assert.Equal(t, path+"#3", emails[1].Source)

	require.Len(t, skipped, 1)
	assert.Equal(t, path+"#2", skipped[0].Source)
	assert.ErrorIs(t, skipped[0].Err, ErrInvalidEmail)
}

func TestCollectDirectory(t *testing.T) {
	emails, skipped := Collect([]string{"testdata", filepath.Join("testdata", "nope")})

	var subjects []string
	for _, e := range emails {
		subjects = append(subjects, e.Subject)
	}
	sort.Strings(subjects)
	assert.Equal(t, []string{"Quarterly report ✓", "YOU ARE A WINNER", "first", "third"}, subjects)

	var sources []string
	for _, s := range skipped {
		sources = append(sources, s.Source)
	}
	assert.ElementsMatch(t, []string{
		filepath.Join("testdata", "archive.mbox") + "#2",
		filepath.Join("testdata", "unrelayed.eml"),
		filepath.Join("testdata", "nope"),
	}, sources)
}
