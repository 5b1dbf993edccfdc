package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	gitconfig "gopkg.in/src-d/go-git.v4/plumbing/format/config"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// resolveIdentity picks the commit identity: an explicit "Name <email>"
// override, then the repository config, the per-user twig config, and
// finally ~/.gitconfig.
func resolveIdentity(r *repo.Repo, override string) (object.Identity, error) {
	if strings.TrimSpace(override) != "" {
		id, err := object.ParseIdentity(strings.TrimSpace(override) + " 0 +0000")
		if err != nil {
			return object.Identity{}, twigerr.Errorf(twigerr.ErrInvalidArgument, "author %q: expected \"Name <email>\"", override)
		}
		return object.Identity{Name: id.Name, Email: id.Email}, nil
	}

	user := r.Config.User
	if user.Name != "" && user.Email != "" {
		return object.Identity{Name: user.Name, Email: user.Email}, nil
	}

	home, _ := homedir.Dir()
	for _, p := range repo.GlobalConfigPaths(home) {
		var global repo.Config
		if _, err := toml.DecodeFile(p, &global); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return object.Identity{}, twigerr.Errorf(twigerr.ErrInvalidArgument, "read %s: %v", p, err)
		}
		fillUser(&user, global.User)
	}
	if home != "" {
		gitUser, err := readGitConfigUser(filepath.Join(home, ".gitconfig"))
		if err != nil {
			return object.Identity{}, err
		}
		fillUser(&user, gitUser)
	}

	if user.Name == "" || user.Email == "" {
		return object.Identity{}, twigerr.Errorf(twigerr.ErrInvalidArgument,
			"no commit identity: set [user] name and email in .twig/config or %s, or pass --author", strings.Join(repo.GlobalConfigPaths(home), " or "))
	}
	return object.Identity{Name: user.Name, Email: user.Email}, nil
}

func fillUser(dst *repo.UserConfig, src repo.UserConfig) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
}

// readGitConfigUser reads [user] from a git-style config file. A missing
// file yields an empty user.
func readGitConfigUser(path string) (repo.UserConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repo.UserConfig{}, nil
		}
		return repo.UserConfig{}, twigerr.Errorf(twigerr.ErrIO, "read %s: %v", path, err)
	}
	defer f.Close()

	cfg := gitconfig.New()
	if err := gitconfig.NewDecoder(f).Decode(cfg); err != nil {
		return repo.UserConfig{}, twigerr.Errorf(twigerr.ErrInvalidArgument, "parse %s: %v", path, err)
	}
	user := cfg.Section("user")
	return repo.UserConfig{Name: user.Option("name"), Email: user.Option("email")}, nil
}
