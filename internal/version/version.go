package version

import (
	"fmt"
	"os/exec"
	"strings"
)

// Set at build time with -ldflags "-X".
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type gitFunc func(args ...string) (string, error)

// Resolve returns the version, with a git describe suffix when the binary
// runs from a checkout whose HEAD is not exactly on a release tag.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// Detailed adds the build commit and date when they were stamped in.
func Detailed() string {
	return detailed(Resolve(), Commit, Date)
}

func detailed(version, commit, date string) string {
	var extras []string
	if commit != "" && commit != "unknown" {
		extras = append(extras, "commit "+commit)
	}
	if date != "" && date != "unknown" {
		extras = append(extras, "built "+date)
	}
	if len(extras) == 0 {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, strings.Join(extras, ", "))
}

func resolveVersion(base string, git gitFunc) string {
	if base == "" {
		base = "0.0.0"
	}

	if suffix := gitSuffix(base, git); suffix != "" {
		return base + "-" + suffix
	}
	return base
}

func gitSuffix(base string, git gitFunc) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
