package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the host can run a bootstrap",
	Long:  `Report on the external tools, the Docker daemon, and the target directories without changing anything.`,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("bootstack doctor")
	fmt.Printf("runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	baseDir, workDir := doctorDirs()

	checks := []struct {
		name string
		fn   func() error
	}{
		{"git binary", func() error {
			_, err := exec.LookPath("git")
			return err
		}},
		{"docker binary", func() error {
			_, err := exec.LookPath("docker")
			return err
		}},
		{"docker compose", func() error {
			return exec.Command("docker", "compose", "version").Run()
		}},
		{"docker daemon", func() error {
			return exec.Command("docker", "info").Run()
		}},
		{"uplink binary", func() error {
			_, err := exec.LookPath("uplink")
			return err
		}},
		{baseDir + " writable", func() error {
			return writableCheck(baseDir)
		}},
		{workDir + " writable", func() error {
			return writableCheck(workDir)
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			fmt.Printf("[WARN] %s: %v\n", check.name, err)
		} else {
			fmt.Printf("[ OK ] %s\n", check.name)
		}
	}
	return nil
}

// doctorDirs resolves the target directories the same way the config parser
// does, without requiring the rest of the configuration to be present.
func doctorDirs() (string, string) {
	baseDir := os.Getenv("BASE_DIR")
	if baseDir == "" {
		baseDir = "/srv/appstack"
	}
	workDir := os.Getenv("WORKDIR")
	if workDir == "" {
		workDir = filepath.Join(baseDir, "work")
	}
	return baseDir, workDir
}

// writableCheck proves the directory can be created and written to.
func writableCheck(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(path, ".doctor-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}
