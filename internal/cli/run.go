package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/oklahomer/go-kasumi/logger"
	"github.com/spf13/cobra"

	discord "github.com/oklahomer/go-discord-bridge"
)

var allEvents = []discord.EventName{
	discord.EventMessageReceived,
	discord.EventMessageModified,
	discord.EventMessageDeleted,
	discord.EventUserJoins,
	discord.EventUserLeaves,
	discord.EventUserRoleChanges,
}

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute instructions from stdin and print events",
		Long: "Reads one instruction per line from stdin, e.g.\n\n" +
			"  id:mybot connect code:<token>\n" +
			"  id:mybot message channel:123456 \"Hello world!\"\n\n" +
			"Results and observed events are printed to stdout as JSON lines. Lines starting with # are ignored.",
		RunE: runRun,
	}

	cmd.Flags().StringArray("connect", nil, "Connect a bot on start as name=ENV_VAR, reading the token from ENV_VAR (repeatable)")
	cmd.Flags().String("bot", "", "Only print events of this bot")
	cmd.Flags().Bool("exit-on-eof", false, "Stop once stdin is exhausted and every instruction has completed")

	RootCmd.AddCommand(cmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	connects, _ := cmd.Flags().GetStringArray("connect")
	bot, _ := cmd.Flags().GetString("bot")
	exitOnEOF, _ := cmd.Flags().GetBool("exit-on-eof")

	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bridge := discord.NewBridge(config)
	stopped := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(stopped)
	}()

	out := newPrinter(cmd.OutOrStdout())
	for _, name := range allEvents {
		if _, err := bridge.Subscribe(ctx, name, bot, out.event); err != nil {
			cancel()
			<-stopped
			return fmt.Errorf("subscribe to %s: %w", name, err)
		}
	}

	var inflight sync.WaitGroup
	for _, value := range connects {
		ins, err := connectInstruction(value, os.Getenv)
		if err != nil {
			cancel()
			<-stopped
			return err
		}

		pending := bridge.Dispatch(ctx, ins)
		inflight.Add(1)
		go func(line string) {
			defer inflight.Done()
			out.result(line, pending, pending.Wait(ctx))
		}("id:" + ins.ID + " connect")
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- execute(ctx, bridge, cmd.InOrStdin(), out, &inflight)
	}()

	select {
	case err = <-readErr:
		if err != nil {
			logger.Errorf("Failed to read instructions: %+v", err)
		}
		inflight.Wait()
		if exitOnEOF {
			cancel()
		}
		<-ctx.Done()

	case <-ctx.Done():

	}

	logger.Infof("Shutting down")
	<-stopped
	return err
}

// execute runs every instruction read from r until r is exhausted or ctx is done.
func execute(ctx context.Context, bridge *discord.Bridge, r io.Reader, out *printer, inflight *sync.WaitGroup) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pending, err := bridge.Execute(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			out.result(line, nil, err)
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			out.result(line, pending, pending.Wait(ctx))
		}()
	}

	return scanner.Err()
}

// connectInstruction builds a connect instruction from a name=ENV_VAR flag value.
func connectInstruction(value string, getenv func(string) string) (*discord.Instruction, error) {
	name, variable, ok := strings.Cut(value, "=")
	name = discord.NormalizeID(name)
	variable = strings.TrimSpace(variable)
	if !ok || name == "" || variable == "" {
		return nil, fmt.Errorf("%w: --connect expects name=ENV_VAR, got %q", discord.ErrInvalidArgument, value)
	}

	token := getenv(variable)
	if token == "" {
		return nil, fmt.Errorf("%w: %s is not set", discord.ErrEmptyToken, variable)
	}

	return &discord.Instruction{
		Action: discord.ActionConnect,
		ID:     name,
		Token:  token,
	}, nil
}
