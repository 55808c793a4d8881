package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/batchscribe/internal/transcript"
)

// AudioExtensions are the input suffixes picked up from folders and file
// selections, compared case-insensitively.
var AudioExtensions = []string{".mp3", ".m4a", ".wav", ".flac", ".aac", ".ogg"}

func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range AudioExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Gather expands files and folders into the list of audio files to process.
// Folders contribute their direct children, or every descendant when
// recursive is set. Paths that cannot be read are reported in the joined
// error while the rest are still gathered.
func Gather(paths []string, recursive bool) ([]string, error) {
	var (
		files []string
		errs  []error
		seen  = make(map[string]struct{})
	)

	add := func(path string) {
		key := filepath.Clean(path)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		files = append(files, key)
	}

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", path, err))
			continue
		}

		switch {
		case !info.IsDir():
			if IsAudioFile(path) {
				add(path)
			}
		case recursive:
			errs = append(errs, walkTree(path, add)...)
		default:
			if err := listDir(path, add); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return files, errors.Join(errs...)
}

func listDir(dir string, add func(string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read folder %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !IsAudioFile(entry.Name()) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if isRegular(entry, full) {
			add(full)
		}
	}
	return nil
}

func walkTree(root string, add func(string)) []error {
	var errs []error
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		if d.IsDir() || !IsAudioFile(d.Name()) {
			return nil
		}
		if isRegular(d, path) {
			add(path)
		}
		return nil
	})
	return errs
}

// isRegular follows symlinks so linked audio files are still picked up.
func isRegular(entry fs.DirEntry, path string) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// OutputPath names the transcript for source inside outputDir.
func OutputPath(outputDir, source string, format transcript.Format) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+"."+format.Extension())
}
