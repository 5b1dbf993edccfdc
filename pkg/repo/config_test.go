package repo

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/odvcencio/twig/pkg/twigerr"
)

func TestConfigRoundTrip(t *testing.T) {
	r := newTestRepo(t)

	cfg := DefaultConfig()
	cfg.Core.FileMode = false
	cfg.User = UserConfig{Name: "Bee", Email: "bee@example.com"}
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	got, err := ReadConfig(filepath.Join(r.Dir, "config"))
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("config = %+v, want %+v", got, cfg)
	}
	if r.Config != cfg {
		t.Fatal("WriteConfig did not update r.Config")
	}
}

func TestConfigIsTOML(t *testing.T) {
	r := newTestRepo(t)
	data, err := os.ReadFile(filepath.Join(r.Dir, "config"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"[core]", "repositoryformatversion = 0", "filemode = true", "bare = false", `objectformat = "sha1"`, "[user]"} {
		if !strings.Contains(text, want) {
			t.Errorf("config missing %q:\n%s", want, text)
		}
	}
}

func TestReadConfigMissingReturnsDefault(t *testing.T) {
	cfg, err := ReadConfig(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("config = %+v, want default", cfg)
	}
}

func TestReadConfigRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("[core\nfilemode = "), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadConfig(path)
	assertCategory(t, err, twigerr.ErrInvalidArgument)
}

func TestConfigCodecRejectsUnknownNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Core.ObjectFormat = "md5"
	if _, err := cfg.Codec(); !twigerr.Is(err, twigerr.ErrInvalidArgument) {
		t.Fatalf("Codec(md5) err = %v, want InvalidArgument", err)
	}

	cfg = DefaultConfig()
	cfg.Core.Compression = "lz4"
	if _, err := cfg.Codec(); !twigerr.Is(err, twigerr.ErrInvalidArgument) {
		t.Fatalf("Codec(lz4) err = %v, want InvalidArgument", err)
	}

	_, err := InitWithConfig(t.TempDir(), cfg)
	assertCategory(t, err, twigerr.ErrInvalidArgument)
}

func TestGlobalConfigPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	got := GlobalConfigPaths("/home/u")
	want := []string{
		filepath.Join("/home/u", ".config", "twig", "config"),
		filepath.Join("/home/u", ".twigconfig"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GlobalConfigPaths = %v, want %v", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	got = GlobalConfigPaths("")
	want = []string{filepath.Join("/xdg", "twig", "config")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GlobalConfigPaths(xdg) = %v, want %v", got, want)
	}
}
