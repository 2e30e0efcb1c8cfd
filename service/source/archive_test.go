package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

func TestMatchNightlyDirs(t *testing.T) {
	names := []string{
		"2012-01-02-03-02-01-mozilla-central",
		"2012-01-01-04-02-01-mozilla-central",
		"2012-01-01-03-02-01-mozilla-central",
		"2012-01-01-03-02-01-mozilla-aurora",
		"2012-01-01-03-02-01-mozilla-central-l10n",
	}
	actual := matchNightlyDirs(names, time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC), "mozilla-central")
	assert.Equal(t, []string{"2012-01-01-03-02-01-mozilla-central", "2012-01-01-04-02-01-mozilla-central"}, actual)
}

func TestFindInfoFile(t *testing.T) {
	names := []string{"firefox-12.0a1.en-US.linux-i686.txt", "firefox-12.0a1.en-US.linux-x86_64.tar.bz2", "firefox-12.0a1.en-US.linux-x86_64.txt"}
	assert.Equal(t, "firefox-12.0a1.en-US.linux-x86_64.txt", findInfoFile(names, "linux-x86_64"))
	assert.Equal(t, "", findInfoFile(names, "mac"))
}

func TestParseInfo(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		expectTime  time.Time
		expectRev   string
		expectErr   bool
	}{
		{
			description: "url form",
			text:        "20120101030201\nhttp://hg.mozilla.org/mozilla-central/rev/0123456789ab\n",
			expectTime:  time.Date(2012, 1, 1, 3, 2, 1, 0, time.UTC),
			expectRev:   "0123456789ab",
		},
		{
			description: "bare revision",
			text:        "20120102030405 0123456789abcdef0123456789abcdef01234567",
			expectTime:  time.Date(2012, 1, 2, 3, 4, 5, 0, time.UTC),
			expectRev:   "0123456789abcdef0123456789abcdef01234567",
		},
		{description: "missing timestamp", text: "http://hg.mozilla.org/rev/0123456789ab", expectErr: true},
		{description: "missing revision", text: "20120101030201\nhttp://hg.mozilla.org/rev/", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			info, err := parseInfo(tc.text)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectTime, info.Timestamp)
			assert.Equal(t, tc.expectRev, info.Revision)
		})
	}
}

func TestFilterTimestamps(t *testing.T) {
	names := []string{"1325376300", "latest", "1325376000", "1325376600", "1325376900"}
	assert.Equal(t, []int64{1325376000, 1325376300, 1325376600}, filterTimestamps(names, 1325376000, 1325376600))
}

// writeTarGz creates a tarball with the supplied files
func writeTarGz(t *testing.T, location string, files map[string]string) {
	buf := new(bytes.Buffer)
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		assert.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		assert.NoError(t, err)
	}
	assert.NoError(t, tw.Close())
	assert.NoError(t, gz.Close())
	assert.NoError(t, os.MkdirAll(filepath.Dir(location), 0o755))
	assert.NoError(t, os.WriteFile(location, buf.Bytes(), 0o644))
}

func newTestArchive(t *testing.T) (*Archive, string) {
	base := t.TempDir()
	config := DefaultArchiveConfig()
	config.BaseURL = base
	config.ArchiveExt = ".tar.gz"
	dir := filepath.Join(base, "nightly", "2012", "01", "2012-01-01-03-02-01-mozilla-central")
	assert.NoError(t, os.MkdirAll(dir, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "firefox-12.0a1.en-US.linux-x86_64.txt"), []byte("20120101030201\nhttp://hg.mozilla.org/mozilla-central/rev/0123456789ab\n"), 0o644))
	writeTarGz(t, filepath.Join(dir, "firefox-12.0a1.en-US.linux-x86_64.tar.gz"), map[string]string{"firefox/firefox": "#!/bin/sh\n"})

	tinderbox := filepath.Join(base, "tinderbox-builds", "mozilla-central-linux64")
	for _, ts := range []string{"1325376000", "1325376300"} {
		tdir := filepath.Join(tinderbox, ts)
		assert.NoError(t, os.MkdirAll(tdir, 0o755))
		assert.NoError(t, os.WriteFile(filepath.Join(tdir, "firefox-12.0a1.en-US.linux-x86_64.txt"), []byte("20120101000000\nhttp://hg.mozilla.org/mozilla-central/rev/89abcdef0123\n"), 0o644))
		writeTarGz(t, filepath.Join(tdir, "firefox-12.0a1.en-US.linux-x86_64.tar.gz"), map[string]string{"firefox/firefox": "#!/bin/sh\n"})
	}
	return NewArchive(afs.New(), config), base
}

func TestArchive_Nightly(t *testing.T) {
	archive, _ := newTestArchive(t)
	ctx := context.Background()
	info, err := archive.Nightly(ctx, time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "0123456789ab", info.Revision)
	assert.Equal(t, time.Date(2012, 1, 1, 3, 2, 1, 0, time.UTC), info.Timestamp)
	assert.Contains(t, info.ArchiveURL, "firefox-12.0a1.en-US.linux-x86_64.tar.gz")

	_, err = archive.Nightly(ctx, time.Date(2012, 1, 5, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_TinderboxBuilds(t *testing.T) {
	archive, _ := newTestArchive(t)
	ctx := context.Background()
	timestamps, err := archive.TinderboxBuilds(ctx, 0, 1325376100)
	assert.NoError(t, err)
	assert.Equal(t, []int64{1325376000}, timestamps)

	info, err := archive.Tinderbox(ctx, 1325376300)
	assert.NoError(t, err)
	assert.Equal(t, "89abcdef0123", info.Revision)
}

func TestExtract(t *testing.T) {
	dest := t.TempDir()
	location := filepath.Join(t.TempDir(), "build.tar.gz")
	writeTarGz(t, location, map[string]string{"firefox/firefox": "bin", "firefox/omni.ja": "ja"})
	reader, err := os.Open(location)
	assert.NoError(t, err)
	defer reader.Close()
	assert.NoError(t, Extract(reader, location, dest))
	data, err := os.ReadFile(filepath.Join(dest, "firefox", "firefox"))
	assert.NoError(t, err)
	assert.Equal(t, "bin", string(data))
}

func TestExtract_RejectsEscapingEntries(t *testing.T) {
	location := filepath.Join(t.TempDir(), "evil.tar.gz")
	writeTarGz(t, location, map[string]string{"../evil": "x"})
	reader, err := os.Open(location)
	assert.NoError(t, err)
	defer reader.Close()
	assert.Error(t, Extract(reader, location, t.TempDir()))
	assert.Error(t, Extract(bytes.NewReader(nil), "build.zip", t.TempDir()))
}
