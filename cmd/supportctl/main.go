// Command supportctl administers the support chat store: wiping it, backing
// it up, issuing tokens and managing the notification permission.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/auth"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/backup"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/config"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/logging"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/notify"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/support"
)

// confirmPhrase must be typed to wipe every chat.
const confirmPhrase = "DELETE ALL CHATS"

const usage = `usage: supportctl <command> [flags]

commands:
  clear        delete every chat (asks for confirmation)
  export       write the chat collection as json or yaml
  import       replace the chat collection from a backup
  token        issue an API token
  hash-key     print a bcrypt hash for ADMIN_KEY_HASH
  permission   request, show or reset the notification permission
`

// cli carries everything a command touches so tests can swap it.
type cli struct {
	cfg    *config.Config
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	open   func(ctx context.Context) (*support.Service, error)
}

func main() {
	cfg := config.Load()
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	c := &cli{
		cfg:    cfg,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	c.open = func(ctx context.Context) (*support.Service, error) {
		backend, err := storage.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return support.New(backend, support.Options{
			StorageKey:        cfg.StorageKey,
			InitialPermission: notify.ParsePermission(cfg.NotifyPermission),
			Prompter:          notify.TerminalPrompter{In: c.in, Out: c.out},
		}, logger), nil
	}

	os.Exit(c.run(context.Background(), os.Args[1:]))
}

// run dispatches one command and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.errOut, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "clear":
		err = c.clear(ctx, args[1:])
	case "export":
		err = c.export(ctx, args[1:])
	case "import":
		err = c.importChats(ctx, args[1:])
	case "token":
		err = c.token(args[1:])
	case "hash-key":
		err = c.hashKey(args[1:])
	case "permission":
		err = c.permission(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return 0
	default:
		fmt.Fprintf(c.errOut, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(c.errOut, "supportctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// readLine reads one line from the terminal without the trailing newline.
func (c *cli) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) withService(ctx context.Context, fn func(*support.Service) error) error {
	svc, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer svc.Close()
	return fn(svc)
}

func (c *cli) clear(ctx context.Context, args []string) error {
	fs := c.flags("clear")
	yes := fs.Bool("yes", false, "skip the typed confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if c.cfg.AdminKeyHash != "" {
		key, err := c.readLine("admin key: ")
		if err != nil {
			return err
		}
		if err := auth.CheckAdminKey(c.cfg.AdminKeyHash, key); err != nil {
			return errors.New("admin key rejected")
		}
	}
	if !*yes {
		answer, err := c.readLine(fmt.Sprintf("This deletes every chat. Type %q to continue: ", confirmPhrase))
		if err != nil {
			return err
		}
		if answer != confirmPhrase {
			fmt.Fprintln(c.out, "aborted, nothing was deleted")
			return nil
		}
	}

	return c.withService(ctx, func(svc *support.Service) error {
		if err := svc.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "all chats deleted")
		return nil
	})
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := c.flags("export")
	format := fs.String("format", "json", "json or yaml")
	file := fs.String("file", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := backup.ParseFormat(*format)
	if err != nil {
		return err
	}

	return c.withService(ctx, func(svc *support.Service) error {
		raw, err := svc.Export(ctx, f)
		if err != nil {
			return err
		}
		if *file == "" {
			_, err = c.out.Write(raw)
			return err
		}
		return os.WriteFile(*file, raw, 0o600)
	})
}

func (c *cli) importChats(ctx context.Context, args []string) error {
	fs := c.flags("import")
	format := fs.String("format", "json", "json or yaml")
	file := fs.String("file", "", "read from this file instead of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := backup.ParseFormat(*format)
	if err != nil {
		return err
	}

	var raw []byte
	if *file == "" {
		raw, err = io.ReadAll(c.in)
	} else {
		raw, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}

	return c.withService(ctx, func(svc *support.Service) error {
		n, err := svc.Import(ctx, raw, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "imported %d chats\n", n)
		return nil
	})
}

func (c *cli) token(args []string) error {
	fs := c.flags("token")
	name := fs.String("name", "", "display name carried in the token")
	role := fs.String("role", string(data.RoleCustomer), "CUSTOMER, TECHNICAL, FINANCIAL, BOOKING or ADMIN")
	sub := fs.String("sub", "", "token subject, defaults to the name")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := data.ParseRole(*role)
	if err != nil {
		return err
	}
	subject := *sub
	if subject == "" {
		subject = *name
	}

	var mgr *auth.JWTManager
	switch {
	case len(c.cfg.JWTKeys) > 0:
		mgr = auth.NewJWTManagerFromKeys(c.cfg.JWTKeys, c.cfg.JWTActiveKid, *ttl)
	case c.cfg.JWTSecret != "":
		mgr = auth.NewJWTManager(c.cfg.JWTSecret, *ttl)
	default:
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}

	token, exp, err := mgr.GenerateToken(subject, *name, string(r))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, token)
	fmt.Fprintf(c.errOut, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}

func (c *cli) hashKey(args []string) error {
	fs := c.flags("hash-key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key := fs.Arg(0)
	if key == "" {
		var err error
		if key, err = c.readLine("admin key: "); err != nil {
			return err
		}
	}
	if key == "" {
		return errors.New("empty key")
	}
	hash, err := auth.HashAdminKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, hash)
	return nil
}

func (c *cli) permission(ctx context.Context, args []string) error {
	fs := c.flags("permission")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := fs.Arg(0)
	if action == "" {
		action = "show"
	}

	return c.withService(ctx, func(svc *support.Service) error {
		switch action {
		case "show":
			fmt.Fprintln(c.out, svc.NotificationPermission(ctx))
		case "request":
			granted, err := svc.RequestNotificationPermission(ctx)
			if err != nil {
				return err
			}
			if granted {
				fmt.Fprintln(c.out, "notifications allowed")
			} else {
				fmt.Fprintln(c.out, "notifications not allowed")
			}
		case "reset":
			if err := svc.ResetNotificationPermission(ctx); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "notification permission reset")
		default:
			return fmt.Errorf("unknown action %q, want show, request or reset", action)
		}
		return nil
	})
}
