package source

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// ArchiveConfig locates published builds
type ArchiveConfig struct {
	BaseURL       string `yaml:"baseURL" mapstructure:"baseURL"`
	NightlyPath   string `yaml:"nightlyPath" mapstructure:"nightlyPath"`
	TinderboxPath string `yaml:"tinderboxPath" mapstructure:"tinderboxPath"`
	Branch        string `yaml:"branch" mapstructure:"branch"`
	Platform      string `yaml:"platform" mapstructure:"platform"`
	ArchiveExt    string `yaml:"archiveExt" mapstructure:"archiveExt"`
	// BinaryPath is the executable location relative to the extraction directory
	BinaryPath string `yaml:"binaryPath" mapstructure:"binaryPath"`
}

// DefaultArchiveConfig returns the linux-64 mozilla-central layout
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		BaseURL:       "https://ftp.mozilla.org/pub/firefox",
		NightlyPath:   "nightly",
		TinderboxPath: "tinderbox-builds/mozilla-central-linux64",
		Branch:        "mozilla-central",
		Platform:      "linux-x86_64",
		ArchiveExt:    ".tar.bz2",
		BinaryPath:    "firefox/firefox",
	}
}

// Validate checks the archive configuration
func (c *ArchiveConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("archive baseURL was empty")
	}
	if c.Platform == "" {
		return fmt.Errorf("archive platform was empty")
	}
	if c.ArchiveExt == "" {
		return fmt.Errorf("archive extension was empty")
	}
	if c.BinaryPath == "" {
		return fmt.Errorf("archive binaryPath was empty")
	}
	return nil
}

// Info describes a published build
type Info struct {
	Timestamp  time.Time
	Revision   string
	ArchiveURL string
}

// Archive looks up published builds through an afs backed store
type Archive struct {
	fs     afs.Service
	config ArchiveConfig
}

// NewArchive creates an archive
func NewArchive(fs afs.Service, config ArchiveConfig) *Archive {
	if fs == nil {
		fs = afs.New()
	}
	return &Archive{fs: fs, config: config}
}

// Config returns archive configuration
func (a *Archive) Config() ArchiveConfig {
	return a.config
}

// Nightly returns the nightly build published for the supplied day
func (a *Archive) Nightly(ctx context.Context, date time.Time) (*Info, error) {
	monthURL := url.Join(a.config.BaseURL, path.Join(a.config.NightlyPath, date.Format("2006/01")))
	names, err := a.names(ctx, monthURL)
	if err != nil {
		return nil, err
	}
	dirs := matchNightlyDirs(names, date, a.config.Branch)
	if len(dirs) == 0 {
		return nil, fmt.Errorf("failed to find any nightly directory for date %s: %w", date.Format("2006-01-02"), ErrNotFound)
	}
	for _, dir := range dirs {
		info, err := a.checkBuildDir(ctx, url.Join(monthURL, dir))
		if err != nil {
			return nil, err
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no directory has info on nightly %s (%s): %w", date.Format("2006-01-02"), strings.Join(dirs, ", "), ErrNotFound)
}

// Tinderbox returns the tinderbox build published under timestamp
func (a *Archive) Tinderbox(ctx context.Context, timestamp int64) (*Info, error) {
	dirURL := url.Join(a.tinderboxURL(), strconv.FormatInt(timestamp, 10))
	info, err := a.checkBuildDir(ctx, dirURL)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("tinderbox build %d: %w", timestamp, ErrNotFound)
	}
	return info, nil
}

// TinderboxBuilds returns sorted timestamps of tinderbox builds within [from, to]
func (a *Archive) TinderboxBuilds(ctx context.Context, from, to int64) ([]int64, error) {
	names, err := a.names(ctx, a.tinderboxURL())
	if err != nil {
		return nil, err
	}
	return filterTimestamps(names, from, to), nil
}

func (a *Archive) tinderboxURL() string {
	return url.Join(a.config.BaseURL, a.config.TinderboxPath)
}

// checkBuildDir returns nil info when the directory holds no build for the configured platform
func (a *Archive) checkBuildDir(ctx context.Context, dirURL string) (*Info, error) {
	names, err := a.names(ctx, dirURL)
	if err != nil {
		return nil, err
	}
	infoFile := findInfoFile(names, a.config.Platform)
	if infoFile == "" {
		return nil, nil
	}
	data, err := a.fs.DownloadWithURL(ctx, url.Join(dirURL, infoFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read build info %s: %w", infoFile, err)
	}
	info, err := parseInfo(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid build info %s: %w", infoFile, err)
	}
	info.ArchiveURL = url.Join(dirURL, strings.TrimSuffix(infoFile, ".txt")+a.config.ArchiveExt)
	return info, nil
}

func (a *Archive) names(ctx context.Context, dirURL string) ([]string, error) {
	if exists, _ := a.fs.Exists(ctx, dirURL); !exists {
		return nil, nil
	}
	objects, err := a.fs.List(ctx, dirURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dirURL, err)
	}
	var ret []string
	for i, object := range objects {
		if i == 0 && object.IsDir() && strings.TrimRight(url.Path(object.URL()), "/") == strings.TrimRight(url.Path(dirURL), "/") {
			continue
		}
		ret = append(ret, object.Name())
	}
	return ret, nil
}

// matchNightlyDirs returns YYYY-MM-DD-...-<branch> directories for date, sorted;
// builds may span several directories when they took over an hour.
func matchNightlyDirs(names []string, date time.Time, branch string) []string {
	prefix := date.Format("2006-01-02") + "-"
	suffix := "-" + branch
	var ret []string
	for _, name := range names {
		name = strings.TrimSuffix(name, "/")
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			ret = append(ret, name)
		}
	}
	sort.Strings(ret)
	return ret
}

// findInfoFile returns the first firefox*<platform>.txt file name
func findInfoFile(names []string, platform string) string {
	for _, name := range names {
		if strings.HasPrefix(name, "firefox") && strings.HasSuffix(name, platform+".txt") {
			return name
		}
	}
	return ""
}

var (
	infoTimestampExpr = regexp.MustCompile(`^[0-9]{14}`)
	infoRevisionExpr  = regexp.MustCompile(`([0-9a-z]{12,40})$`)
)

// parseInfo reads "<YYYYmmddHHMMSS>\n<url ending with revision>"
func parseInfo(text string) (*Info, error) {
	text = strings.TrimSpace(text)
	stamp := infoTimestampExpr.FindString(text)
	if stamp == "" {
		return nil, fmt.Errorf("missing build timestamp")
	}
	timestamp, err := time.ParseInLocation("20060102150405", stamp, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid build timestamp %v: %w", stamp, err)
	}
	match := infoRevisionExpr.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil, fmt.Errorf("missing build revision")
	}
	return &Info{Timestamp: timestamp, Revision: match[1]}, nil
}

// filterTimestamps returns integer names within [from, to], sorted
func filterTimestamps(names []string, from, to int64) []int64 {
	var ret []int64
	for _, name := range names {
		value, err := strconv.ParseInt(strings.TrimSuffix(name, "/"), 10, 64)
		if err != nil {
			continue
		}
		if value >= from && value <= to {
			ret = append(ret, value)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}
