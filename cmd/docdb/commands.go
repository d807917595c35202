package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/validation"
)

const prompt = "docdb> "

// CLI interprets one command per line against a database
type CLI struct {
	db    *docdb.Database
	store docdb.Reader
	out   io.Writer
}

// NewCLI creates an interpreter writing results to out
func NewCLI(db *docdb.Database, store docdb.Reader, out io.Writer) *CLI {
	return &CLI{db: db, store: store, out: out}
}

// Run reads commands from in until exit, end of input or ctx is done. Only
// the calling goroutine touches the database.
func (cli *CLI) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	// The reader stops at the next line once Run returns. A Read that never
	// returns still holds it.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), validation.MaxDocumentSize+1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(cli.out, prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(cli.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(cli.out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if cli.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs a single command line and reports whether the CLI should exit.
func (cli *CLI) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch strings.ToLower(command) {
	case "exit", "quit":
		fmt.Fprintln(cli.out, "bye")
		return true
	case "help":
		cli.showHelp()
	case "add":
		err = cli.add(rest)
	case "replace":
		err = cli.replace(rest)
	case "delete", "del":
		err = cli.delete(rest)
	case "get":
		err = cli.get(rest)
	case "count":
		err = cli.count()
	case "begin":
		err = cli.ok(cli.db.BeginTransaction())
	case "commit":
		err = cli.ok(cli.db.CommitTransaction())
	case "cancel", "rollback":
		err = cli.ok(cli.db.CancelTransaction())
	case "flush":
		err = cli.ok(cli.db.Flush())
	case "end":
		err = cli.ok(cli.db.EndSession())
	case "keepalive":
		err = cli.ok(cli.db.KeepAlive())
	case "state":
		cli.showState()
	default:
		err = fmt.Errorf("unknown command %q (type 'help')", command)
	}

	if err != nil {
		cli.printError(err)
	}
	return false
}

func (cli *CLI) ok(err error) error {
	if err == nil {
		fmt.Fprintln(cli.out, "ok")
	}
	return err
}

func (cli *CLI) add(arg string) error {
	if arg == "" {
		return errors.New("usage: add <json>")
	}
	req, err := validation.ParseDocumentRequest([]byte(arg))
	if err != nil {
		return err
	}

	id, err := cli.db.AddDocument(req.Document())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "added %d\n", id)
	return nil
}

func (cli *CLI) replace(arg string) error {
	idStr, body, found := strings.Cut(arg, " ")
	if !found {
		return errors.New("usage: replace <id> <json>")
	}
	id, err := validation.ParseDocID(idStr)
	if err != nil {
		return err
	}
	req, err := validation.ParseDocumentRequest([]byte(strings.TrimSpace(body)))
	if err != nil {
		return err
	}

	if err := cli.db.ReplaceDocument(id, req.Document()); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "replaced %d\n", id)
	return nil
}

func (cli *CLI) delete(arg string) error {
	if arg == "" {
		return errors.New("usage: delete <id>")
	}
	id, err := validation.ParseDocID(arg)
	if err != nil {
		return err
	}

	if err := cli.db.DeleteDocument(id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d\n", id)
	return nil
}

func (cli *CLI) get(arg string) error {
	if arg == "" {
		return errors.New("usage: get <id>")
	}
	id, err := validation.ParseDocID(arg)
	if err != nil {
		return err
	}

	doc, err := cli.store.Document(id)
	if err != nil {
		return err
	}
	out, err := json.Marshal(validation.DocumentResponse(doc))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, string(out))
	return nil
}

func (cli *CLI) count() error {
	n, err := cli.store.DocCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d documents\n", n)
	return nil
}

func (cli *CLI) showState() {
	fmt.Fprintf(cli.out, "state: %s\n", cli.db.State())
	if id := cli.db.SessionID(); id != "" {
		fmt.Fprintf(cli.out, "session: %s\n", id)
	}
}

func (cli *CLI) printError(err error) {
	switch {
	case docdb.IsInvalidOperation(err):
		fmt.Fprintf(cli.out, "invalid operation: %v\n", err)
	case docdb.IsNotFound(err):
		fmt.Fprintf(cli.out, "not found: %v\n", err)
	default:
		fmt.Fprintf(cli.out, "error: %v\n", err)
	}
}

func (cli *CLI) showHelp() {
	fmt.Fprint(cli.out, `Commands:
  add <json>             Add a document, e.g. add {"data": {"title": "x"}, "values": {"lang": "en"}}
  replace <id> <json>    Replace (or create) the document with the given id
  delete <id>            Delete a document
  get <id>               Show a document
  count                  Count documents
  begin                  Begin a transaction
  commit                 Commit the transaction
  cancel                 Cancel the transaction
  flush                  Flush pending changes to storage
  end                    End the session (cancels an open transaction)
  keepalive              Keep a remote session alive
  state                  Show session and transaction state
  help                   Show this help
  exit                   End the session and quit
`)
}
