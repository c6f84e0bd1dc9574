// Package adminconsole is an interactive local shell for an operator
// sitting at the machine the storage engine runs on: it speaks the same
// reserved-verb text protocol a remote client would, straight against
// the in-process server, without opening a socket.
package adminconsole

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/server"
)

const (
	promptNormal = "\033[32msutra>\033[0m "
	resultMarker = "\033[31m=\033[0m "
)

// Console is a readline-backed REPL over an already-constructed
// server.Server. Each Console instance carries its own session id
// (visible in its banner and its history filename) so that operators
// running consoles against several namespaces in parallel can tell
// their shell history apart.
type Console struct {
	srv       *server.Server
	sessionID string
	logger    *zap.Logger
}

func New(srv *server.Server, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		srv:       srv,
		sessionID: uuid.New().String(),
		logger:    logger,
	}
}

// Run drives the REPL until the user exits (Ctrl-D) or interrupts
// twice (Ctrl-C on an empty line), or ctx is canceled.
func (c *Console) Run(ctx context.Context) error {
	historyFile := fmt.Sprintf(".sutra-console-history-%s.tmp", c.sessionID[:8])

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptNormal,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	rl.CaptureExitSignal()

	fmt.Printf("sutra-storage admin console (session %s)\n", c.sessionID)
	fmt.Println("try: remember <text> | find <id> | list [n]")

	interrupted := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if line == "" && interrupted {
				return nil
			}
			interrupted = line == ""
			continue
		}
		interrupted = false
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		c.dispatch(ctx, line)
	}
}

func (c *Console) dispatch(ctx context.Context, line string) {
	req, err := server.ParseCommand(line)
	if err != nil {
		fmt.Println(resultMarker, "error:", err)
		return
	}

	resp := c.srv.HandleRequest(ctx, req)
	out, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("failed to encode console response", zap.Error(err))
		fmt.Println(resultMarker, "error: failed to encode response")
		return
	}
	fmt.Println(resultMarker, string(out))
}
