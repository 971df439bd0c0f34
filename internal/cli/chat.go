package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/comigor/evo-go/internal/history"
	"github.com/comigor/evo-go/internal/session"
)

const chatHelp = `Commands:
  /new              start a new chat
  /delete           delete the chat history
  /save [name]      save the chat
  /load <n>         load saved chat n
  /saved            list saved chats
  /rate <i> up|down rate assistant turn i
  /edit <i>         drop user turn i and later turns; press enter to resend it
  /regen            regenerate the last reply
  /share [format]   print the chat as text, json or yaml
  /copy <i>         copy turn i to the clipboard
  /history          print the chat
  /quit             exit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := newREPL(ctrl, cmd.OutOrStdout())
		r.prompt = term.IsTerminal(int(os.Stdin.Fd()))
		return r.run(cmd.Context(), os.Stdin)
	},
}

// repl is the interactive chat loop. draft holds text returned by /edit; an
// empty line resends it.
type repl struct {
	ctrl   *session.Controller
	out    io.Writer
	draft  string
	prompt bool
}

func newREPL(c *session.Controller, out io.Writer) *repl {
	return &repl{ctrl: c, out: out}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, hintStyle.Render("Type a message, /help for commands."))
	r.printTurns(r.ctrl.Turns())

	scanner := bufio.NewScanner(in)
	for {
		if r.prompt {
			fmt.Fprint(r.out, userStyle.Render("> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if quit := r.handle(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether the loop should stop.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" && r.draft != "" {
		line, r.draft = r.draft, ""
	}
	if !strings.HasPrefix(line, "/") {
		r.submit(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(r.out, hintStyle.Render(chatHelp))
	case "new":
		if r.report(r.ctrl.NewChat(ctx)) {
			fmt.Fprintln(r.out, hintStyle.Render("Started a new chat."))
		}
	case "delete":
		if r.report(r.ctrl.DeleteHistory(ctx)) {
			fmt.Fprintln(r.out, hintStyle.Render("Chat history deleted."))
		}
	case "save":
		ss, err := r.ctrl.Save(ctx, arg)
		if r.report(err) {
			fmt.Fprintln(r.out, hintStyle.Render(fmt.Sprintf("Saved as %q.", ss.Name)))
		}
	case "saved":
		r.printSaved(r.ctrl.SavedSessions())
	case "load":
		i, ok := r.index(arg)
		if !ok {
			return false
		}
		turns, err := r.ctrl.Load(ctx, i)
		if r.report(err) {
			r.printTurns(turns)
		}
	case "rate":
		idx, val, _ := strings.Cut(arg, " ")
		i, ok := r.index(idx)
		if !ok {
			return false
		}
		rating, err := history.ParseRating(strings.TrimSpace(val))
		if !r.report(err) {
			return false
		}
		if r.report(r.ctrl.Rate(ctx, i, rating)) {
			fmt.Fprintln(r.out, hintStyle.Render(fmt.Sprintf("Rated turn %d%s.", i, ratingMark(string(rating)))))
		}
	case "edit":
		i, ok := r.index(arg)
		if !ok {
			return false
		}
		content, err := r.ctrl.EditUserTurn(ctx, i)
		if r.report(err) {
			r.draft = content
			fmt.Fprintln(r.out, hintStyle.Render("Editing (enter to resend, or type a replacement):"))
			fmt.Fprintln(r.out, content)
		}
	case "regen":
		reply, err := r.ctrl.Regenerate(ctx)
		if r.report(err) {
			r.printAssistant(reply)
		}
	case "share":
		out, err := r.ctrl.Share(arg)
		if r.report(err) {
			fmt.Fprintln(r.out, out)
		}
	case "copy":
		i, ok := r.index(arg)
		if !ok {
			return false
		}
		if _, err := r.ctrl.Copy(i); r.report(err) {
			fmt.Fprintln(r.out, hintStyle.Render("Copied to clipboard."))
		}
	case "history":
		r.printTurns(r.ctrl.Turns())
	default:
		fmt.Fprintln(r.out, errorStyle.Render("Unknown command /"+cmd+". Try /help."))
	}
	return false
}

func (r *repl) submit(ctx context.Context, text string) {
	reply, err := r.ctrl.Submit(ctx, text)
	if r.report(err) {
		r.printAssistant(reply)
	}
}

// report prints err as the chat screen would and returns true when err is nil.
func (r *repl) report(err error) bool {
	if err == nil {
		return true
	}
	fmt.Fprintln(r.out, errorStyle.Render(r.ctrl.DisplayMessage(err)))
	return false
}

func (r *repl) index(arg string) (int, bool) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render("Expected a turn number, got "+strconv.Quote(arg)+"."))
		return 0, false
	}
	return i, true
}

func (r *repl) printAssistant(text string) {
	fmt.Fprintf(r.out, "%s %s\n", assistantStyle.Render(r.ctrl.AssistantName()+":"), text)
}

func (r *repl) printTurns(turns []history.Turn) {
	for i, t := range turns {
		label := userStyle.Render(fmt.Sprintf("[%d] you:", i))
		if t.Role == history.RoleAssistant {
			label = assistantStyle.Render(fmt.Sprintf("[%d] %s:", i, r.ctrl.AssistantName()))
		}
		fmt.Fprintf(r.out, "%s %s%s\n", label, t.Content, ratingMark(string(t.Rating)))
	}
}

func (r *repl) printSaved(saved []history.SavedSession) {
	if len(saved) == 0 {
		fmt.Fprintln(r.out, hintStyle.Render("No saved chats."))
		return
	}
	selected := r.ctrl.Selected()
	for i, ss := range saved {
		marker := " "
		if i == selected {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d: %s (%d turns)\n", marker, i, ss.Name, len(ss.Turns))
	}
}
