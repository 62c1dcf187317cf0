package main

// crosscompile.go builds labmap for the release targets into
// binaries/<version>/<os>/<arch>/ and points binaries/latest at it.
// The version is the git commit count, or GITHUB_RUN_NUMBER in CI, with
// "-dirty" appended for uncommitted trees.
//
//	go run ./scripts

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

type target struct {
	os, arch string
}

var targets = []target{
	{"linux", "amd64"}, {"linux", "arm64"}, {"linux", "arm"}, {"linux", "386"},
	{"darwin", "amd64"}, {"darwin", "arm64"},
	{"windows", "amd64"}, {"windows", "arm64"},
	{"freebsd", "amd64"}, {"openbsd", "amd64"},
}

var jobs = flag.Int("j", 4, "Parallel builds")
var withDuckDB = flag.Bool("duckdb", false, "Link the DuckDB record source where CGO allows it")

func main() {
	flag.Parse()

	root, err := git("rev-parse", "--show-toplevel")
	if err != nil {
		log.Fatalf("git root: %v", err)
	}
	version, err := buildVersion()
	if err != nil {
		log.Fatalf("version: %v", err)
	}
	fmt.Printf("Building labmap %s\n", version)

	out := filepath.Join(root, "binaries", version)
	if err := os.MkdirAll(out, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	latest := filepath.Join(root, "binaries", "latest")
	_ = os.Remove(latest)
	if err := os.Symlink(version, latest); err != nil {
		log.Printf("warning: symlink latest: %v", err)
	}

	sem := make(chan struct{}, max(1, *jobs))
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := build(root, out, version, t); err != nil {
				log.Printf("%s/%s: %v", t.os, t.arch, err)
				return
			}
			fmt.Printf("built %s/%s\n", t.os, t.arch)
		}(t)
	}
	wg.Wait()
}

func build(root, out, version string, t target) error {
	dir := filepath.Join(out, t.os, t.arch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := "labmap"
	if t.os == "windows" {
		name += ".exe"
	}

	args := []string{"build", "-trimpath", "-ldflags", fmt.Sprintf("-s -w -X 'main.CompileVersion=%s'", version)}
	duck := *withDuckDB && supportsDuckDB(t)
	if duck {
		args = append(args, "-tags", "duckdb")
	}
	args = append(args, "-o", filepath.Join(dir, name), ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GOOS="+t.os, "GOARCH="+t.arch)
	if duck {
		cmd.Env = append(cmd.Env, "CGO_ENABLED=1")
	} else {
		cmd.Env = append(cmd.Env, "CGO_ENABLED=0")
	}
	if msg, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("%w\n%s", err, msg)
	}
	return nil
}

// supportsDuckDB lists the targets the DuckDB driver ships prebuilt
// libraries for.
func supportsDuckDB(t target) bool {
	switch t.os {
	case "linux", "windows":
		return t.arch == "amd64"
	case "darwin":
		return t.arch == "amd64" || t.arch == "arm64"
	}
	return false
}

func buildVersion() (string, error) {
	n := os.Getenv("GITHUB_RUN_NUMBER")
	if n == "" {
		var err error
		if n, err = git("rev-list", "--count", "HEAD"); err != nil {
			return "", err
		}
	}
	status, err := git("status", "--porcelain")
	if err != nil {
		return "", err
	}
	if status != "" {
		n += "-dirty"
	}
	return n, nil
}

func git(args ...string) (string, error) {
	b, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(b)), err
}
