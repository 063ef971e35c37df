package main

import (
	"os"
	"os/user"
	"time"

	"github.com/witvcs/wit/internal/gitcore"
)

// resolveAuthor builds a commit signature from GIT_AUTHOR_NAME/
// GIT_AUTHOR_EMAIL (falling back to GIT_COMMITTER_*, then the OS user
// account), matching real git's environment-variable precedence for the
// common case where no ~/.gitconfig parsing is available.
func resolveAuthor() gitcore.Signature {
	name := firstNonEmpty(os.Getenv("GIT_AUTHOR_NAME"), os.Getenv("GIT_COMMITTER_NAME"), systemUserName())
	email := firstNonEmpty(os.Getenv("GIT_AUTHOR_EMAIL"), os.Getenv("GIT_COMMITTER_EMAIL"), systemUserEmail())
	return gitcore.Signature{Name: name, Email: email, When: time.Now()}
}

func systemUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func systemUserEmail() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return systemUserName() + "@" + host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
