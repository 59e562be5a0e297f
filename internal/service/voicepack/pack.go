package voicepack

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/platform/command"
)

// ManifestFilename is the name Pack gives the manifest it writes.
const ManifestFilename = "voicepack.yaml"

var errNoClips = errors.New("no mood clips found")

// Pack checksums the mood clips in dir and writes a manifest next to them.
// Files that are not named after a known mood are left out.
func Pack(ctx context.Context, dir, version string) (*Manifest, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+command.ClipExtension))
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}

	manifest := &Manifest{
		Version: version,
		Clips:   make(map[string]string, len(matches)),
	}

	for _, match := range matches {
		name := filepath.Base(match)
		if err = validateClipName(name); err != nil {
			logger.WarnKV(ctx, "Skipping clip", "clip", name, "error", err)

			continue
		}

		checksum, err := FileChecksum(match)
		if err != nil {
			return nil, err
		}

		manifest.Clips[name] = base64.StdEncoding.EncodeToString(checksum)
	}

	if len(manifest.Clips) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoClips, dir)
	}

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(dir, ManifestFilename)
	if err = os.WriteFile(target, contents, ClipFileMode); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.Info(ctx, uploadHint(manifest))

	return manifest, nil
}

// uploadHint lists the files that make up the pack.
func uploadHint(manifest *Manifest) string {
	files := make([]string, 0, len(manifest.Clips)+1)
	for name := range manifest.Clips {
		files = append(files, name)
	}

	slices.Sort(files)

	files = append(files, ManifestFilename)

	var builder strings.Builder

	builder.WriteString("Upload the following files to one folder and point voice_pack.manifest_url at ")
	builder.WriteString(ManifestFilename)
	builder.WriteString(":\n")
	builder.WriteString(strings.Join(files, ",\n"))

	return builder.String()
}
