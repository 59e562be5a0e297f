package voicepack

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/platform/command"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/version"
)

const (
	// ChecksumFunction hashes clips in the manifest.
	ChecksumFunction crypto.Hash = crypto.SHA512
	// ClipFileMode is the permission of installed clips.
	ClipFileMode os.FileMode = 0o644

	dirFileMode  os.FileMode = 0o750
	maxClipBytes             = 32 << 20
)

var (
	errBadHTTPStatus   = errors.New("unexpected http status")
	errNoManifestURL   = errors.New("voice pack manifest URL is not set")
	errUnknownClip     = errors.New("clip does not match a known mood")
	errClipTooLarge    = errors.New("clip exceeds size limit")
	errHashUnavailable = errors.New("hash function unavailable")
)

// Manifest describes a voice pack release.
type Manifest struct {
	// Version is the pack release name.
	Version string `yaml:"version"`
	// Clips maps clip filenames to base64-encoded checksums.
	Clips map[string]string `yaml:"clips"`
}

// Options are inputs accepted by Install.
type Options struct {
	// ManifestURL locates the manifest; clips sit next to it.
	ManifestURL string
	// Dir is where clips are installed.
	Dir string
	// Client is the HTTP client; nil uses http.DefaultClient.
	Client *http.Client
}

// Result lists what Install did.
type Result struct {
	Version   string
	Installed []string
	Skipped   []string
}

// LoadManifest fetches and decodes the manifest.
func LoadManifest(ctx context.Context, client *http.Client, manifestURL string) (*Manifest, error) {
	body, err := fetch(ctx, client, manifestURL, maxClipBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	var manifest Manifest
	if err = yaml.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	for name := range manifest.Clips {
		if err = validateClipName(name); err != nil {
			return nil, err
		}
	}

	return &manifest, nil
}

// Install downloads every clip in the manifest whose local copy is missing or stale.
func Install(ctx context.Context, opts Options) (*Result, error) {
	if opts.ManifestURL == "" {
		return nil, errNoManifestURL
	}

	manifest, err := LoadManifest(ctx, opts.Client, opts.ManifestURL)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(opts.Dir, dirFileMode); err != nil {
		return nil, fmt.Errorf("create voice pack dir: %w", err)
	}

	result := &Result{Version: manifest.Version}

	names := make([]string, 0, len(manifest.Clips))
	for name := range manifest.Clips {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		checksum, err := base64.StdEncoding.DecodeString(manifest.Clips[name])
		if err != nil {
			return result, fmt.Errorf("checksum for %s: %w", name, err)
		}

		target := filepath.Join(opts.Dir, name)

		local, err := FileChecksum(target)
		if err == nil && bytes.Equal(local, checksum) {
			logger.DebugKV(ctx, "Voice clip is up to date", "clip", name)

			result.Skipped = append(result.Skipped, name)

			continue
		}

		if err = installClip(ctx, opts, name, target, checksum); err != nil {
			return result, err
		}

		logger.InfoKV(ctx, "Installed voice clip", "clip", name, "version", manifest.Version)

		result.Installed = append(result.Installed, name)
	}

	return result, nil
}

// FileChecksum returns the checksum of a file using ChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return Checksum(contents)
}

// Checksum hashes data using ChecksumFunction.
func Checksum(data []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, errHashUnavailable
	}

	hasher := ChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

func installClip(ctx context.Context, opts Options, name, target string, checksum []byte) error {
	clipURL, err := resolveRelative(opts.ManifestURL, name)
	if err != nil {
		return err
	}

	data, err := fetch(ctx, opts.Client, clipURL, maxClipBytes)
	if err != nil {
		return fmt.Errorf("fetch clip %s: %w", name, err)
	}

	// The update applier renames the old file aside, so it must exist.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, ClipFileMode)
		if createErr != nil {
			return createErr
		}

		_ = placeholder.Close()
	}

	err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: target,
		TargetMode: ClipFileMode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	})
	if err != nil {
		return fmt.Errorf("apply clip %s: %w", name, err)
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// validateClipName accepts only "<mood>.wav" names.
func validateClipName(name string) error {
	mood, ok := strings.CutSuffix(name, command.ClipExtension)
	if !ok || filepath.Base(name) != name || playback.NormalizeMood(mood) != mood {
		return fmt.Errorf("%w: %q", errUnknownClip, name)
	}

	return nil
}

func resolveRelative(manifestURL, name string) (string, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", err
	}

	base.Path = path.Join(path.Dir(base.Path), name)

	return base.String(), nil
}

func fetch(ctx context.Context, client *http.Client, rawURL string, limit int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", rawURL, errClipTooLarge)
	}

	return data, nil
}
