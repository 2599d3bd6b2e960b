package main

import (
	"context"
	"errors"
	"fmt"
	exitReload "github.com/MrMelon54/exit-reload"
	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"github.com/mrmelon54/mc-launcher/auth"
	launch_args "github.com/mrmelon54/mc-launcher/launch-args"
	"github.com/mrmelon54/mc-launcher/launcher"
	"github.com/mrmelon54/mc-launcher/manifest"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"sync/atomic"
)

const appName = "MC Launcher"

// env is the state shared by every command, built once before the command
// runs.
type env struct {
	confPath string
	conf     *atomic.Pointer[Config]
	logger   *zap.Logger
	client   *resty.Client
	state    *mc_launcher.State
}

func (e *env) init(c *cli.Context) error {
	var err error
	if c.Bool("debug") {
		e.logger, err = zap.NewDevelopment()
	} else {
		e.logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	e.confPath = c.String("conf")
	explicit := e.confPath != ""
	if !explicit {
		root, err := defaultRoot()
		if err != nil {
			e.logger.Fatal("Failed to find the launcher directory", zap.Error(err))
		}
		e.confPath = filepath.Join(root, "config.yml")
	}

	e.conf = new(atomic.Pointer[Config])
	if err := loadLauncherConfig(e.conf, e.confPath, explicit); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e.state, err = loadState(e.conf.Load())
	if err != nil {
		return err
	}
	e.client = resty.New().SetHeader("User-Agent", launch_args.LauncherName+"/"+launch_args.LauncherVersion)
	return nil
}

func (e *env) reload() {
	if err := loadLauncherConfig(e.conf, e.confPath, true); err != nil {
		e.logger.Error("Failed to reload config", zap.Error(err))
		return
	}
	e.logger.Info("Config reloaded, changes apply to the next launch")
}

func (e *env) saveAccounts() error {
	return saveAccounts(e.conf.Load().Accounts, e.state.Accounts)
}

// versions loads the version list, falling back to installed versions when
// the remote index is unreachable.
func (e *env) versions(ctx context.Context) *manifest.Store {
	settings := e.state.Settings
	store := manifest.NewStore(e.client, settings.ManifestUrl, settings.VersionsDir(), e.logger)
	if err := store.Load(ctx); err != nil {
		e.logger.Warn("Failed to fetch version manifest", zap.Error(err))
		pterm.Warning.Println("Version list unavailable, only installed versions can be used")
	}
	return store
}

func (e *env) account(idOrName string) (*mc_launcher.Account, error) {
	if idOrName != "" {
		if acc := e.state.Account(idOrName); acc != nil {
			return acc, nil
		}
		return nil, fmt.Errorf("unknown account %q", idOrName)
	}
	if len(e.state.Accounts) == 0 {
		return nil, errors.New("no accounts, use login or add-offline first")
	}
	return e.state.Accounts[0], nil
}

func main() {
	e := new(env)
	app := &cli.App{
		Name:  "mc-launcher",
		Usage: "Install and launch Minecraft instances",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "conf", Usage: "Path to the config file"},
			&cli.BoolFlag{Name: "debug", Usage: "Verbose logging"},
		},
		Before: e.init,
		After: func(c *cli.Context) error {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "launch",
				Usage:     "Install and start an instance",
				ArgsUsage: "<instance>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "Account id or name, defaults to the first account"},
				},
				Action: func(c *cli.Context) error {
					return launch(c, e)
				},
			},
			{
				Name:  "login",
				Usage: "Link a Microsoft account",
				Action: func(c *cli.Context) error {
					return login(c, e)
				},
			},
			{
				Name:      "add-offline",
				Usage:     "Add an offline account",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return errors.New("missing account name")
					}
					if e.state.Account(name) != nil {
						return fmt.Errorf("account %q already exists", name)
					}
					acc, err := mc_launcher.NewOfflineAccount(name)
					if err != nil {
						return err
					}
					e.state.AddAccount(acc)
					if err := e.saveAccounts(); err != nil {
						return err
					}
					pterm.Success.Println("Added offline account " + name)
					return nil
				},
			},
			{
				Name:  "versions",
				Usage: "List available versions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "Only list versions of this type, e.g. release or snapshot"},
				},
				Action: func(c *cli.Context) error {
					store := e.versions(c.Context)
					for _, kind := range []string{"release", "snapshot"} {
						if id, ok := store.Latest(kind); ok {
							pterm.Info.Printfln("Latest %s: %s", kind, id)
						}
					}
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetStyle(table.StyleLight)
					tw.AppendHeader(table.Row{"Version", "Type", "Released", "Installed"})
					for _, v := range store.Entries(c.String("type")) {
						released := ""
						if !v.ReleaseTime.IsZero() {
							released = v.ReleaseTime.Format("2006-01-02")
						}
						installed := ""
						if v.Local {
							installed = "yes"
						}
						tw.AppendRow(table.Row{v.Id, v.Type, released, installed})
					}
					tw.Render()
					return nil
				},
			},
			{
				Name:    "instances",
				Aliases: []string{"ls"},
				Usage:   "List instances",
				Action: func(c *cli.Context) error {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetStyle(table.StyleLight)
					tw.AppendHeader(table.Row{"Name", "Version", "Location", "Java"})
					for _, i := range e.state.Instances {
						tw.AppendRow(table.Row{text.Bold.Sprint(i.Name), i.Version, i.Location, i.JavaLocation})
					}
					tw.Render()
					return nil
				},
			},
			{
				Name:  "accounts",
				Usage: "List accounts",
				Action: func(c *cli.Context) error {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetStyle(table.StyleLight)
					tw.AppendHeader(table.Row{"Name", "Type", "Id"})
					for _, a := range e.state.Accounts {
						tw.AppendRow(table.Row{text.Bold.Sprint(a.Name), a.Type.String(), a.Id})
					}
					tw.Render()
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Fatal.Println(err)
	}
}

func launch(c *cli.Context, e *env) error {
	name := c.Args().First()
	inst := e.state.Instance(name)
	if inst == nil {
		return fmt.Errorf("unknown instance %q", name)
	}
	acc, err := e.account(c.String("account"))
	if err != nil {
		return err
	}

	store := e.versions(c.Context)
	s := launcher.New(e.client, e.state.Settings, store, newTerminalSink(e.logger), e.logger)
	s.Output = os.Stdout
	s.PruneNatives()

	done, _ := s.Launch(c.Context, inst, acc)
	go exitReload.ExitReload(appName, func() {
		e.reload()
		store.Refresh()
	}, s.Stop)
	<-done

	// token refreshes happened during authentication
	return e.saveAccounts()
}

func login(c *cli.Context, e *env) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	engine := auth.NewEngine(e.client, e.state.Settings.ClientId, newTerminalSink(e.logger), e.logger)
	flow := auth.NewFlow(engine)
	flow.OnCode = func(code *auth.DeviceCode) {
		if code.Message != "" {
			pterm.Info.Println(code.Message)
			return
		}
		pterm.Info.Printfln("Open %s and enter the code %s", code.VerificationUri, code.UserCode)
	}
	go exitReload.ExitReload(appName, func() {}, cancel)

	acc, err := flow.Run(ctx)
	if errors.Is(err, context.Canceled) {
		pterm.Warning.Println("Login cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	for _, a := range e.state.Accounts {
		if a.Type == mc_launcher.AccountMicrosoft && a.Uuid == acc.Uuid {
			a.Microsoft = acc.Microsoft
			a.SetProfile(acc.Name, acc.Uuid)
			pterm.Info.Println("Account already linked, tokens updated: " + acc.Name)
			return e.saveAccounts()
		}
	}
	e.state.AddAccount(acc)
	if err := e.saveAccounts(); err != nil {
		return err
	}
	pterm.Success.Println("Linked Microsoft account " + acc.Name)
	return nil
}
