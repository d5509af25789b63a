package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// execIface is the command surface runREPL dispatches to.
type execIface interface {
	printf(format string, args ...any)

	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Use(ctx context.Context, args []string) error

	AddPDF(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Annotations(ctx context.Context, args []string) error
	Note(ctx context.Context, args []string) error
	Highlight(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Conflicts(ctx context.Context, args []string) error
	Resolve(ctx context.Context, args []string) error
	Queue(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error
	CacheInfo(ctx context.Context, args []string) error
	Token(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  list                                  list items of the current library
  show <item>                           item details and attachments
  add                                   create an item
  edit <item>                           edit an item
  delete <item>                         delete an item
  use <library>                         switch library
  addpdf <path>                         attach a PDF as a new item
  open <attachment>                     print the local path of a PDF
  annotations <attachment>              list annotations
  note <attachment> <page>              add a note
  highlight <attachment> <page> <x1> <y1> <x2> <y2>
  sync                                  run a sync pass now
  conflicts                             list unresolved conflicts
  resolve <item> local|remote           settle a conflict
  queue                                 upload queue status
  retry <entry>                         retry a failed upload
  cache                                 content cache usage
  token                                 replace the access token
  exit | quit`

// runREPL reads one command per line and dispatches it to a. Command errors
// are reported and never end the loop; EOF, exit and quit do. Commands that
// prompt read from the same reader.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	commands := map[string]func(context.Context, []string) error{
		"list":        a.List,
		"l":           a.List,
		"show":        a.Show,
		"add":         a.Add,
		"edit":        a.Edit,
		"delete":      a.Delete,
		"use":         a.Use,
		"addpdf":      a.AddPDF,
		"open":        a.Open,
		"annotations": a.Annotations,
		"note":        a.Note,
		"highlight":   a.Highlight,
		"sync":        a.Sync,
		"conflicts":   a.Conflicts,
		"resolve":     a.Resolve,
		"queue":       a.Queue,
		"retry":       a.Retry,
		"cache":       a.CacheInfo,
		"token":       a.Token,
	}

	for {
		a.printf("rk %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			a.printf("%s\n", helpText)
			continue
		case "exit", "quit":
			a.printf("Bye!\n")
			return
		}

		fn, ok := commands[cmd]
		if !ok {
			a.printf("Unknown command: %s\n", cmd)
			continue
		}
		if err := fn(ctx, args); err != nil {
			a.printf("error: %v\n", err)
		}
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
