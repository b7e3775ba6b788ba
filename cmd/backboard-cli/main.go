package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"backboard/internal/domain"
	"backboard/internal/share"
	"backboard/pkg/backboard"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: backboard-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  share      Build a share link from a config JSON file\n")
		fmt.Fprintf(os.Stderr, "  decode     Decode a share token or URL to state JSON\n")
		fmt.Fprintf(os.Stderr, "  run        Trigger a run on a backboard server\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("backboard-cli %s\n", version)

	case "share":
		cmdShare(os.Args[2:])

	case "decode":
		cmdDecode(os.Args[2:])

	case "run":
		cmdRun(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func cmdShare(args []string) {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	baseURL := fs.String("base-url", "http://localhost:8080/", "dashboard URL the link points at")
	configB := fs.String("config-b", "", "second config JSON file; produces a compare link")
	copyFlag := fs.Bool("copy", false, "copy the link to the system clipboard")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: backboard-cli share [options] <config.json>")
		os.Exit(1)
	}

	cfg, err := loadConfigFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}

	var state *domain.ShareableState
	if *configB != "" {
		cfgB, err := loadConfigFile(*configB)
		if err != nil {
			fatal(err)
		}
		state = domain.CompareState(cfg, cfgB)
	} else {
		state = domain.SingleState(cfg)
	}

	loc, err := share.ParseLocation(*baseURL)
	if err != nil {
		fatal(fmt.Errorf("invalid base URL: %w", err))
	}

	link, err := share.BuildLink(loc, state)
	if err != nil {
		fatal(err)
	}

	fmt.Println(link)

	// Clipboard copy is best effort; a missing clipboard tool never fails
	// the command, it just reports copied=false.
	if *copyFlag {
		fmt.Printf("copied: %v\n", copyToClipboard(link))
	}
}

func cmdDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: backboard-cli decode <token-or-url>")
		os.Exit(1)
	}

	arg := fs.Arg(0)
	token := arg
	if strings.Contains(arg, "://") {
		token = share.ExtractToken(arg)
		if token == "" {
			fatal(fmt.Errorf("no state token in URL"))
		}
	}

	state := share.Decode(token)
	if state == nil {
		fatal(fmt.Errorf("token did not decode"))
	}

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "backboard server URL")
	slot := fs.String("slot", "", "comparison slot (a or b); empty for a single-mode run")
	wait := fs.Bool("wait", false, "poll until the run reaches a terminal state")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: backboard-cli run [options] <config.json>")
		os.Exit(1)
	}

	cfg, err := loadConfigFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	client := backboard.NewClient(*server)

	switch strings.ToLower(*slot) {
	case "":
		err = client.Run(ctx, cfg)
	case "a":
		err = client.RunSlot(ctx, "A", cfg)
	case "b":
		err = client.RunSlot(ctx, "B", cfg)
	default:
		fatal(fmt.Errorf("slot must be a or b"))
	}
	if err != nil {
		fatal(err)
	}
	fmt.Println("run accepted")

	if *wait {
		waitForRun(ctx, client, strings.ToLower(*slot))
	}
}

func waitForRun(ctx context.Context, client *backboard.Client, slot string) {
	for {
		view, err := client.State(ctx)
		if err != nil {
			fatal(err)
		}
		snap := view.A.Snapshot
		if slot == "b" {
			snap = view.B.Snapshot
		}
		switch snap.Status {
		case "succeeded":
			fmt.Println("run succeeded")
			return
		case "failed":
			fatal(fmt.Errorf("run failed: %s", snap.Err))
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func loadConfigFile(path string) (domain.BacktestConfig, error) {
	var cfg domain.BacktestConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// copyToClipboard pipes text into the platform clipboard tool. Returns false
// when no tool is available or the copy fails.
func copyToClipboard(text string) bool {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			return false
		}
	default:
		return false
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run() == nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
