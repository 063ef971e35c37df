package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/witvcs/wit/internal/cli"
	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/termcolor"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	// --version is handled before app.Run because "--" prefixed args
	// would be treated as unknown commands by the dispatcher.
	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)

	app := cli.NewApp("wit", version)
	app.Stderr = os.Stderr

	// repo is declared here and assigned after dispatch determines that
	// the matched command needs it (NeedsRepo). Closures capture the
	// pointer variable, which is populated before they execute.
	var repo *gitcore.Repository

	app.Register(&cli.Command{
		Name:      "branch",
		Summary:   "List, create, or delete branches",
		Usage:     "wit branch [-d] [<name>]",
		Examples:  []string{"wit branch", "wit branch feature", "wit branch -d feature"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runBranch(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "log",
		Summary:   "Show commit log",
		Usage:     "wit log [--oneline] [-n <count>]",
		Examples:  []string{"wit log", "wit log --oneline -n5"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runLog(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "cat-file",
		Summary:   "Show object content, type, or size",
		Usage:     "wit cat-file (-t|-s|-p) <object>",
		Examples:  []string{"wit cat-file -p HEAD", "wit cat-file -t abc1234"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCatFile(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "diff",
		Summary:   "Show diff between two commits",
		Usage:     "wit diff [--stat] <commit1> <commit2>",
		Examples:  []string{"wit diff main HEAD", "wit diff --stat main dev"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runDiff(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "show",
		Summary:   "Show commit details and diff",
		Usage:     "wit show [--stat] [<commit>]",
		Examples:  []string{"wit show", "wit show --stat HEAD"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runShow(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "stash",
		Summary:   "List stash entries",
		Usage:     "wit stash list",
		NeedsRepo: true,
		Run:       func(args []string) int { return runStash(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "status",
		Summary:   "Show working tree status",
		Usage:     "wit status [-s|--porcelain]",
		Examples:  []string{"wit status", "wit status --porcelain"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runStatus(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "tag",
		Summary:   "List, create, or delete tags",
		Usage:     "wit tag [-d] [-m <message>] [<name>]",
		Examples:  []string{"wit tag", "wit tag v1.0.0", "wit tag -m \"release\" v1.0.0", "wit tag -d v1.0.0"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runTag(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "add",
		Summary:   "Add file contents to the index",
		Usage:     "wit add <path>...",
		Examples:  []string{"wit add .", "wit add -A"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runAdd(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "commit",
		Summary:   "Record changes to the repository",
		Usage:     "wit commit -m <message>",
		Examples:  []string{"wit commit -m \"fix bug\""},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCommit(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "init",
		Summary:   "Create an empty repository",
		Usage:     "wit init [--bare] [<directory>]",
		Examples:  []string{"wit init", "wit init --bare repo.git"},
		NeedsRepo: false,
		Run:       func(args []string) int { return runInit(args) },
	})

	app.Register(&cli.Command{
		Name:      "checkout",
		Summary:   "Switch branches or restore the working tree",
		Usage:     "wit checkout [-f] <branch-or-commit>",
		Examples:  []string{"wit checkout main", "wit checkout -f main"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCheckout(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "reset",
		Summary:   "Reset current HEAD to a commit",
		Usage:     "wit reset [--soft|--mixed|--hard] [<commit>]",
		Examples:  []string{"wit reset --hard HEAD"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runReset(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "merge",
		Summary:   "Join two or more development histories together",
		Usage:     "wit merge <branch-or-commit>",
		Examples:  []string{"wit merge feature-branch"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runMerge(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "clone",
		Summary:   "Clone a repository over Smart-HTTP",
		Usage:     "wit clone <url> [<directory>]",
		Examples:  []string{"wit clone http://example.com/repo.git"},
		NeedsRepo: false,
		Run:       func(args []string) int { return runClone(args) },
	})

	app.Register(&cli.Command{
		Name:      "push",
		Summary:   "Update remote refs along with associated objects",
		Usage:     "wit push [<remote>] [<branch>]",
		Examples:  []string{"wit push origin main"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runPush(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "pull",
		Summary:   "Fetch and integrate with another repository",
		Usage:     "wit pull [<remote>]",
		Examples:  []string{"wit pull origin"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runPull(repo, args) },
	})

	app.Register(&cli.Command{
		Name:    "update",
		Summary: "Update to the latest release",
		Usage:   "wit update [--check]",
		Examples: []string{
			"wit update",
			"wit update --check",
		},
		Run: func(args []string) int { return runUpdate(args) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "wit version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	// Determine which command will run so we can load the repo only when needed.
	if len(args) > 0 {
		cmd := app.Lookup(args[0])
		if cmd != nil && cmd.NeedsRepo {
			repoPath := os.Getenv("GIT_DIR")
			if repoPath == "" {
				repoPath = "."
			}
			var err error
			repo, err = gitcore.NewRepository(repoPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
				os.Exit(128)
			}
		}
	}

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("wit %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
