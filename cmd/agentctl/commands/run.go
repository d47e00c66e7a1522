package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentcore/turnengine/internal/engine"
	"github.com/agentcore/turnengine/pkg/types"
)

var (
	runDir     string
	runSession string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send a single message and print the turn's result",
	Long: `run starts (or continues) a session, sends one message, waits for the
turn to finish, and prints the final response to stdout.

Examples:
  agentctl run "Fix the bug in main.go"
  agentctl run --session 01J... "Now add a test for it"`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Existing session id to continue")
}

func runOnce(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: agentctl run \"your message\"")
	}

	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	var assistantText strings.Builder
	callbacks := engine.Callbacks{
		OnAssistantText: func(text string) { assistantText.WriteString(text) },
	}

	w, err := wire(workDir, callbacks)
	if err != nil {
		return err
	}

	var sess *types.Session
	if runSession != "" {
		sess, err = w.store.LoadSession(runSession)
		if err != nil {
			return fmt.Errorf("load session %s: %w", runSession, err)
		}
	} else {
		sess = w.store.CreateSession(workDir, w.cfg)
	}

	w.eng.StartSession(sess, w.store.SessionDir(sess.ID))
	defer w.eng.EndSession()

	result := w.eng.SendMessage(message)
	if !result.Success {
		return fmt.Errorf("message rejected: %s", result.Error)
	}

	final := w.eng.WaitForResult()
	if err := w.store.SaveSession(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if final != nil && final.IsError {
		return fmt.Errorf("turn failed: %s", final.ErrorMessage)
	}

	fmt.Println(assistantText.String())
	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sess.ID)
	return nil
}
