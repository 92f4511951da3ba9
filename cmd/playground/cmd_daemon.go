package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/playground/internal/config"
)

const (
	pollInterval   = 100 * time.Millisecond
	defaultLogTail = 4096
)

// cmdStart launches playgroundd detached and waits for its health check.
func cmdStart(args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if c.healthy() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	var daemonArgs []string
	for _, a := range args {
		switch a {
		case "--ephemeral", "-ephemeral":
			daemonArgs = append(daemonArgs, "-ephemeral")
		default:
			return fmt.Errorf("unknown start flag %q", a)
		}
	}

	dir, err := config.EnsurePlaygroundDir()
	if err != nil {
		return fmt.Errorf("setup playground directory: %w", err)
	}
	bin, err := findDaemonBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(bin, daemonArgs...)
	cmd.Dir = dir
	configureDaemonProcess(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}
	// The daemon outlives us; release it so it is not left as a zombie child.
	_ = cmd.Process.Release()

	fmt.Print("Starting daemon")
	if !waitFor(30, pollInterval, c.healthy) {
		fmt.Println(" ✗")
		return errors.New("daemon failed to start (see 'playground logs')")
	}
	fmt.Printf(" ✓\nDaemon running at %s\n", c.baseURL)
	return nil
}

// cmdStop sends SIGTERM and waits for the health check to go away.
func cmdStop() error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if !c.healthy() {
		fmt.Println("Daemon is not running")
		return nil
	}

	dir, err := config.PlaygroundDir()
	if err != nil {
		return err
	}
	pid, err := readPID(filepath.Join(dir, pidFile))
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}

	fmt.Print("Stopping daemon")
	if !waitFor(50, pollInterval, func() bool { return !c.healthy() }) {
		fmt.Println(" ✗")
		return errors.New("daemon did not stop in time")
	}
	fmt.Println(" ✓")
	return nil
}

// waitFor polls cond up to attempts times, printing a dot per miss.
func waitFor(attempts int, every time.Duration, cond func() bool) bool {
	for range attempts {
		time.Sleep(every)
		if cond() {
			return true
		}
		fmt.Print(".")
	}
	return false
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s is corrupt", path)
	}
	return pid, nil
}

type daemonStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Storage   string `json:"storage"`
	Levels    int    `json:"levels"`
	Exercises int    `json:"exercises"`
	Events    bool   `json:"events"`
}

func cmdStatus() error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if !c.healthy() {
		fmt.Println("Status: stopped")
		return nil
	}

	var st daemonStatus
	if err := c.get("/v1/status", &st); err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	printStatus(os.Stdout, st, c.baseURL)
	return nil
}

func printStatus(w io.Writer, st daemonStatus, addr string) {
	events := "off"
	if st.Events {
		events = "on"
	}
	fmt.Fprintf(w, "Status:    %s\n", st.Status)
	fmt.Fprintf(w, "Version:   %s\n", st.Version)
	fmt.Fprintf(w, "Storage:   %s\n", st.Storage)
	fmt.Fprintf(w, "Levels:    %d (%d exercises)\n", st.Levels, st.Exercises)
	fmt.Fprintf(w, "Events:    %s\n", events)
	fmt.Fprintf(w, "Address:   %s\n", addr)
}

// cmdLogs prints roughly the last N bytes of the daemon log, whole lines only.
func cmdLogs(args []string) error {
	limit := int64(defaultLogTail)
	if len(args) > 0 {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid byte count %q", args[0])
		}
		limit = n
	}

	dir, err := config.PlaygroundDir()
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(dir, "logs", logFile))
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	return tailLines(f, limit, os.Stdout)
}

// tailLines copies the complete lines found in the final limit bytes of r.
func tailLines(r io.ReadSeeker, limit int64, w io.Writer) error {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	offset := max(size-limit, 0)
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log: %w", err)
	}

	br := bufio.NewReader(r)
	if offset > 0 {
		// Drop the partial line we landed in.
		if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	_, err = io.Copy(w, br)
	return err
}

// findDaemonBinary looks on PATH, next to this executable, then in common build locations.
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("playgroundd"); err == nil {
		return path, nil
	}

	var candidates []string
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), "playgroundd"))
	}
	candidates = append(candidates, "/usr/local/bin/playgroundd", "./playgroundd", "./bin/playgroundd")

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.New("playgroundd not found (build it with 'go build ./cmd/playgroundd')")
}
