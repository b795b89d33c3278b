package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/queryscript/qs"
)

// Context carries the global flags every subcommand needs, mirroring
// the teacher CLI's Context/appCtx split (cmd/snapsql/main.go).
type Context struct {
	Config  string
	EnvFile string
}

// RunCmd compiles one schema file and evaluates a single decl path
// against it, printing the result.
type RunCmd struct {
	Schema string `arg:"" help:"Path to a QueryScript schema file."`
	Path   string `arg:"" help:"Dotted path of the decl to evaluate, e.g. queries.top_users."`
}

func (cmd *RunCmd) Run(appCtx *Context) error {
	cfg, err := loadConfig(appCtx)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(cmd.Schema)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", qs.ErrSyntax, cmd.Schema, err)
	}

	ctx := context.Background()

	sess, err := NewSession(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	schema, err := sess.Compile(cmd.Schema, nil, string(src))
	if err != nil {
		return err
	}

	v, err := sess.Eval(ctx, schema, qs.NewPath(splitPath(cmd.Path)...))
	if err != nil {
		return err
	}

	fmt.Printf("%v\n", v)

	return nil
}

func splitPath(s string) []string {
	var parts []string
	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}

	return append(parts, s[start:])
}

// CompileCmd compiles a schema file and reports success, without
// evaluating anything — useful for CI "does this still typecheck" gates.
type CompileCmd struct {
	Schema string `arg:"" help:"Path to a QueryScript schema file."`
}

func (cmd *CompileCmd) Run(appCtx *Context) error {
	cfg, err := loadConfig(appCtx)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(cmd.Schema)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", qs.ErrSyntax, cmd.Schema, err)
	}

	sess, err := NewSession(context.Background(), cfg, nil, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.Compile(cmd.Schema, nil, string(src)); err != nil {
		return err
	}

	fmt.Println("ok")

	return nil
}

// VersionCmd prints the CLI's own version.
type VersionCmd struct{}

func (cmd *VersionCmd) Run(_ *Context) error {
	fmt.Println("qsc v0.1.0")
	return nil
}

var CLI struct {
	Config  string `help:"Path to a qsc YAML config file." default:"qs.config.yaml"`
	EnvFile string `help:"Path to a .env file overriding engine connection strings."`

	Run     RunCmd     `cmd:"" help:"Compile a schema and evaluate one decl path."`
	Compile CompileCmd `cmd:"" help:"Compile a schema and report success."`
	Version VersionCmd `cmd:"" help:"Print qsc's version."`
}

func loadConfig(appCtx *Context) (qs.Config, error) {
	if _, err := os.Stat(appCtx.Config); err != nil {
		return qs.DefaultConfig(), nil
	}

	return qs.LoadConfig(appCtx.Config, appCtx.EnvFile)
}

func main() {
	ctx := kong.Parse(&CLI)

	appCtx := &Context{Config: CLI.Config, EnvFile: CLI.EnvFile}

	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
