package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Expand replaces variables in labels and paths.
// Supported variables:
//   - ${PROJECT} - git repo name or directory name
//   - ${USER}    - current username
//   - ${HOME}    - user's home directory
func Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	result := s
	if strings.Contains(result, "${PROJECT}") {
		result = strings.ReplaceAll(result, "${PROJECT}", getProject())
	}
	if strings.Contains(result, "${USER}") {
		result = strings.ReplaceAll(result, "${USER}", getUser())
	}
	if strings.Contains(result, "${HOME}") {
		result = strings.ReplaceAll(result, "${HOME}", getHome())
	}
	return result
}

// getProject returns the git repo name, falling back to the directory name.
func getProject() string {
	if name := getGitRepoName(); name != "" {
		return name
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "project"
	}
	return filepath.Base(cwd)
}

func getGitRepoName() string {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err == nil {
		return extractRepoName(strings.TrimSpace(string(out)))
	}
	out, err = exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return ""
	}
	return filepath.Base(strings.TrimSpace(string(out)))
}

// extractRepoName parses the repo name from SSH or HTTPS remote URLs.
func extractRepoName(url string) string {
	if strings.Contains(url, ":") && !strings.Contains(url, "://") {
		if parts := strings.Split(url, ":"); len(parts) == 2 {
			url = parts[1]
		}
	}
	return strings.TrimSuffix(filepath.Base(url), ".git")
}

func getUser() string {
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "user"
}

func getHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "~"
}
