// Package shell drives a store.Session from line-oriented commands. It is a
// thin adapter: it parses a command, calls one session operation, and prints
// the result or the failure.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	platformerrors "github.com/jmgilman/go/errors"

	"blockfs/internal/logging"
	"blockfs/internal/store"
)

var (
	logger = logging.GetLogger().WithPrefix("shell")
)

const usage = `commands:
  ls [dir]                       list the current directory or dir
  cd <dir> | cd .. | back        navigate
  pwd                            print the current directory
  mkdir <name>                   create a directory here
  rmdir <name>                   remove an empty directory
  touch <name> [content...]      create a file here
  touchin <dir> <name> [content...]
                                 create a file in dir
  cat <name>                     print a file
  edit <name> <content...>       overwrite a file
  rm <name>                      remove a file
  stat <name>                    describe a file or directory
  df                             block usage
  dump                           print the whole store as JSON
  help                           this text
  exit                           leave the shell`

// Shell reads commands and writes results to out.
type Shell struct {
	session *store.Session
	out     io.Writer
	prompt  string
}

// New creates a shell over session. An empty prompt disables prompting.
func New(session *store.Session, out io.Writer, prompt string) *Shell {
	return &Shell{
		session: session,
		out:     out,
		prompt:  prompt,
	}
}

// A command receives the fields after its name and the raw command line.
type command func(sh *Shell, args []string, line string) error

var commands = map[string]command{
	"ls":      (*Shell).ls,
	"cd":      (*Shell).cd,
	"back":    (*Shell).back,
	"pwd":     (*Shell).pwd,
	"mkdir":   (*Shell).mkdir,
	"rmdir":   (*Shell).rmdir,
	"touch":   (*Shell).touch,
	"touchin": (*Shell).touchin,
	"cat":     (*Shell).cat,
	"edit":    (*Shell).edit,
	"rm":      (*Shell).rm,
	"stat":    (*Shell).stat,
	"df":      (*Shell).df,
	"dump":    (*Shell).dump,
	"help":    (*Shell).help,
}

// errUsage marks a malformed command line.
var errUsage = platformerrors.New(platformerrors.CodeInvalidInput, "wrong number of arguments")

// Run executes commands from in until EOF, "exit", or ctx is cancelled.
// Command failures are printed and do not stop the shell; only read and
// write errors are returned.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sh.prompt != "" {
			if _, err := fmt.Fprintf(sh.out, "%s%s ", sh.session.CurrentDirectory(), sh.prompt); err != nil {
				return err
			}
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			logger.Debug("Shell exit requested")
			return nil
		}
		if err := sh.Exec(line); err != nil {
			if _, werr := fmt.Fprintln(sh.out, FormatError(err)); werr != nil {
				return werr
			}
		}
	}
}

// Exec runs a single command line.
func (sh *Shell) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	cmd, ok := commands[name]
	if !ok {
		return platformerrors.WithContext(
			platformerrors.Newf(platformerrors.CodeInvalidInput, "unknown command %q, try help", name),
			"command", name)
	}
	logger.Trace("Executing %s %v", name, args)
	return cmd(sh, args, line)
}

// FormatError renders err as "error [CODE]: message", prefixing the message
// with the affected name when the error carries one.
func FormatError(err error) string {
	var platformErr platformerrors.PlatformError
	if platformerrors.As(err, &platformErr) {
		msg := platformErr.Message()
		if name, ok := platformErr.Context()["name"]; ok {
			msg = fmt.Sprintf("%v: %s", name, msg)
		}
		return fmt.Sprintf("error [%s]: %s", platformErr.Code(), msg)
	}
	return fmt.Sprintf("error [%s]: %v", platformerrors.CodeUnknown, err)
}

func (sh *Shell) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(sh.out, format, args...)
	return err
}

// afterFields returns line with its first n whitespace-separated fields
// and the whitespace after them removed. Spacing inside the rest is kept.
func afterFields(line string, n int) string {
	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	for i := 0; i < n; i++ {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return rest
}

func exactly(n int, args []string) error {
	if len(args) != n {
		return errUsage
	}
	return nil
}

func (sh *Shell) ls(args []string, _ string) error {
	var (
		names []string
		err   error
	)
	switch len(args) {
	case 0:
		names, err = sh.session.ListDirectory()
	case 1:
		names, err = sh.session.List(args[0])
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	st := sh.session.Store()
	for _, name := range names {
		suffix := ""
		if entry, statErr := st.Stat(name); statErr == nil && entry.Kind == store.KindDirectory {
			suffix = "/"
		}
		if err := sh.printf("%s%s\n", name, suffix); err != nil {
			return err
		}
	}
	return nil
}

func (sh *Shell) cd(args []string, _ string) error {
	if err := exactly(1, args); err != nil {
		return err
	}
	if args[0] == ".." {
		sh.session.NavigateBack()
		return nil
	}
	return sh.session.Navigate(args[0])
}

func (sh *Shell) back(args []string, _ string) error {
	if err := exactly(0, args); err != nil {
		return err
	}
	sh.session.NavigateBack()
	return nil
}

func (sh *Shell) pwd(args []string, _ string) error {
	if err := exactly(0, args); err != nil {
		return err
	}
	return sh.printf("%s\n", sh.session.CurrentDirectory())
}

func (sh *Shell) mkdir(args []string, _ string) error {
	if err := exactly(1, args); err != nil {
		return err
	}
	return sh.session.CreateDirectory(args[0])
}

func (sh *Shell) rmdir(args []string, _ string) error {
	if err := exactly(1, args); err != nil {
		return err
	}
	return sh.session.RemoveDirectory(args[0])
}

func (sh *Shell) touch(args []string, line string) error {
	if len(args) < 1 {
		return errUsage
	}
	return sh.session.CreateFile(args[0], afterFields(line, 2))
}

func (sh *Shell) touchin(args []string, line string) error {
	if len(args) < 2 {
		return errUsage
	}
	return sh.session.CreateFileIn(args[0], args[1], afterFields(line, 3))
}

func (sh *Shell) cat(args []string, _ string) error {
	if err := exactly(1, args); err != nil {
		return err
	}
	content, err := sh.session.ViewFile(args[0])
	if err != nil {
		return err
	}
	return sh.printf("%s\n", content)
}

func (sh *Shell) edit(args []string, line string) error {
	if len(args) < 2 {
		return errUsage
	}
	return sh.session.EditFile(args[0], afterFields(line, 2))
}

func (sh *Shell) rm(args []string, _ string) error {
	if err := exactly(1, args); err != nil {
		return err
	}
	return sh.session.RemoveFile(args[0])
}

func (sh *Shell) stat(args []string, _ string) error {
	if err := exactly(1, args); err != nil {
		return err
	}
	entry, err := sh.session.Store().Stat(args[0])
	if err != nil {
		return err
	}
	if entry.Kind == store.KindDirectory {
		return sh.printf("%s: directory in %q, %d entries\n", entry.Name, entry.Parent, entry.Size)
	}
	return sh.printf("%s: file in %q, block %d, %d bytes\n", entry.Name, entry.Parent, entry.Block, entry.Size)
}

func (sh *Shell) df(args []string, _ string) error {
	if err := exactly(0, args); err != nil {
		return err
	}
	u := sh.session.Store().Usage()
	return sh.printf("blocks: %d total, %d allocated, %d free\n", u.Total, u.Allocated, u.Free)
}

func (sh *Shell) dump(args []string, _ string) error {
	if err := exactly(0, args); err != nil {
		return err
	}
	enc := json.NewEncoder(sh.out)
	enc.SetIndent("", "  ")
	return enc.Encode(sh.session.Store().Snapshot())
}

func (sh *Shell) help(_ []string, _ string) error {
	return sh.printf("%s\n", usage)
}
