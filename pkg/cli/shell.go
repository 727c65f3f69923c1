package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

const shellHelp = `Commands:
  use <descriptor.yaml>        set the current database source
  test [descriptor.yaml]       test connectivity
  schema [descriptor.yaml]     discover schema and record it in history
  save <name>                  remember the current source
  connections                  list saved connections
  load <id>                    make a saved connection current
  delete <id>                  forget a saved connection
  select <source-id> <schema>  choose a source to preview
  page <n> | next | prev       load a preview page
  refresh                      reload the current preview page
  export [dir|-]               export the current page as CSV
  history                      refresh and show ingestion history
  status                       show the last status message
  help                         show this help
  quit                         leave the shell`

var errQuit = errors.New("quit")

type shell struct {
	app     *app
	out     io.Writer
	format  string
	ask     passwordSource
	current *models.SourceDescriptor
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive ingestion session",
		Long:  "Run an interactive session that keeps connections, the preview and history between commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh := &shell{
				app:    a,
				out:    cmd.OutOrStdout(),
				format: getOutputFormat(cmd),
				ask:    terminalPassword(cmd.ErrOrStderr()),
			}
			return sh.loop(cmd.Context(), cmd.InOrStdin())
		},
	}
}

func (s *shell) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "ingest> ")
	for scanner.Scan() {
		err := s.run(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		fmt.Fprint(s.out, "ingest> ")
	}
	fmt.Fprintln(s.out)
	return scanner.Err()
}

func (s *shell) run(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	sess := s.app.session

	switch cmd {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return nil

	case "quit", "exit":
		return errQuit

	case "use":
		if len(args) != 1 {
			return fmt.Errorf("usage: use <descriptor.yaml>")
		}
		desc, err := loadDescriptor(args[0], s.ask)
		if err != nil {
			return err
		}
		s.current = &desc
		fmt.Fprintf(s.out, "Using %s\n", desc.Label())
		if desc.Database != nil {
			cfg := logging.RedactConfig(*desc.Database)
			if cfg.Password == "" {
				cfg.Password = "(not set)"
			}
			fmt.Fprintf(s.out, "  %s %s@%s:%s/%s password %s\n",
				desc.Engine, cfg.Username, cfg.Host, cfg.Port, cfg.Database, cfg.Password)
		}
		return nil

	case "test":
		desc, err := s.descriptor(args)
		if err != nil {
			return err
		}
		if err := sess.Connections.TestConnection(ctx, desc); err != nil {
			return err
		}
		printStatus(s.out, sess.Connections.Status())
		return nil

	case "schema":
		desc, err := s.descriptor(args)
		if err != nil {
			return err
		}
		schema, err := sess.IngestDatabase(ctx, desc, s.app.cfg.Ingestion.ChunkSize)
		if err != nil {
			return err
		}
		printStatus(s.out, sess.Connections.Status())
		return printSchema(s.out, s.format, schema)

	case "save":
		if len(args) < 1 {
			return fmt.Errorf("usage: save <name>")
		}
		desc, err := s.descriptor(nil)
		if err != nil {
			return err
		}
		if _, err := sess.Connections.SaveConnection(strings.Join(args, " "), desc); err != nil {
			return err
		}
		printStatus(s.out, sess.Connections.Status())
		return nil

	case "connections":
		return printConnections(s.out, s.format, sess.Connections.ListConnections())

	case "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: load <id>")
		}
		for _, saved := range sess.Connections.ListConnections() {
			if saved.ID != args[0] {
				continue
			}
			desc := sess.Connections.LoadConnection(saved)
			if pw := os.Getenv(PasswordEnv); pw != "" {
				desc.Database.Password = pw
			} else if s.ask != nil {
				pw, err := s.ask(fmt.Sprintf("Password for %s@%s: ", desc.Database.Username, desc.Database.Host))
				if err != nil {
					return err
				}
				desc.Database.Password = pw
			}
			s.current = &desc
			fmt.Fprintf(s.out, "Loaded %q\n", saved.Name)
			return nil
		}
		return fmt.Errorf("no saved connection with id %q", args[0])

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <id>")
		}
		sess.Connections.DeleteConnection(args[0])
		return nil

	case "select":
		if len(args) != 2 {
			return fmt.Errorf("usage: select <source-id> <schema-file>")
		}
		schema, err := loadSchema(args[1])
		if err != nil {
			return err
		}
		sess.Select(args[0], schema)
		return s.showPage(sess.LoadSelectedPage(ctx, 1))

	case "page":
		if len(args) != 1 {
			return fmt.Errorf("usage: page <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page %q", args[0])
		}
		return s.showPage(sess.LoadSelectedPage(ctx, n))

	case "next", "prev", "refresh":
		sel := sess.Selected()
		switch cmd {
		case "next":
			return s.showPage(sess.Preview.Next(ctx, sel.SourceID, sel.Schema))
		case "prev":
			return s.showPage(sess.Preview.Previous(ctx, sel.SourceID, sel.Schema))
		default:
			return s.showPage(sess.Preview.Refresh(ctx, sel.SourceID, sel.Schema))
		}

	case "export":
		sel := sess.Selected()
		table, err := sess.Preview.Export(sel.SourceID, sel.Schema)
		if err != nil {
			return err
		}
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "-" {
			fmt.Fprintln(s.out, table.Content)
			return nil
		}
		path := filepath.Join(dir, table.Filename(time.Now()))
		if err := os.WriteFile(path, []byte(table.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(s.out, "Exported to %s\n", path)
		return nil

	case "history":
		if err := sess.History.Refresh(ctx); err != nil {
			// Prior entries remain visible after a failed refresh.
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		return printHistory(s.out, s.format, sess.History.Entries())

	case "status":
		printStatus(s.out, sess.Connections.Status())
		return nil
	}

	return fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (s *shell) descriptor(args []string) (models.SourceDescriptor, error) {
	if len(args) > 0 {
		desc, err := loadDescriptor(args[0], s.ask)
		if err != nil {
			return models.SourceDescriptor{}, err
		}
		s.current = &desc
		return desc, nil
	}
	if s.current == nil {
		return models.SourceDescriptor{}, fmt.Errorf("no current source: use <descriptor.yaml> first")
	}
	return *s.current, nil
}

func (s *shell) showPage(page *models.PreviewPage, err error) error {
	if err != nil {
		return err
	}
	return printPage(s.out, s.format, s.app.session.Selected().Schema, page)
}
