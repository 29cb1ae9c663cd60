// Command boardctl inspects boards outside the browser: it finds relays on the
// local network, mirrors a room into a local bbolt file and dumps or exports
// the boards stored there.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/collab"
	"github.com/inkdrift/inkdrift/internal/config"
	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/discovery"
	"github.com/inkdrift/inkdrift/internal/export"
	"github.com/inkdrift/inkdrift/internal/provider"
	"github.com/inkdrift/inkdrift/internal/replica"
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/store/boltstore"
)

const usage = `usage: boardctl <command> [flags] [args]

commands:
  discover            list relays announced on the local network
  pull <room-url>     mirror a relay room into the offline database
  rooms               list the rooms in the offline database
  dump <room>         print a room's shapes as JSON
  export <room>       render a room to PDF
`

var errUsage = errors.New("invalid usage")

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	dbPath := fs.String("db", cfg.OfflineDBPath, "offline database file")

	switch cmd {
	case "discover":
		timeout := fs.Duration("timeout", discovery.DefaultBrowseTimeout, "how long to listen for answers")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return discover(ctx, *timeout, out)

	case "pull":
		timeout := fs.Duration("timeout", 30*time.Second, "give up after this long")
		token := fs.String("token", "", "join token for protected rooms")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		return pull(ctx, *dbPath, fs.Arg(0), *token, *timeout)

	case "rooms":
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return rooms(*dbPath, out)

	case "dump":
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		return dump(ctx, *dbPath, fs.Arg(0), out)

	case "export":
		output := fs.String("o", "", "output file (default <room>.pdf)")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		name := *output
		if name == "" {
			name = fs.Arg(0) + ".pdf"
		}
		return exportPDF(ctx, *dbPath, fs.Arg(0), name)
	}
	return errUsage
}

func discover(ctx context.Context, timeout time.Duration, out io.Writer) error {
	relays, err := discovery.Browse(ctx, timeout)
	if err != nil {
		return err
	}
	if len(relays) == 0 {
		fmt.Fprintln(out, "no relays found")
		return nil
	}
	for _, r := range relays {
		fmt.Fprintf(out, "%s\t%s\t%s\n", r.Instance, r.Addr, r.URL("<room>"))
	}
	return nil
}

// pull connects to roomURL until the handshake completes, persisting the
// room into the offline database under the last path segment of the URL.
func pull(ctx context.Context, dbPath, roomURL, token string, timeout time.Duration) error {
	u, err := url.Parse(roomURL)
	if err != nil {
		return fmt.Errorf("parse room url: %w", err)
	}
	roomID := path.Base(u.Path)
	if roomID == "." || roomID == "/" || !collab.ValidRoomID(roomID) {
		return fmt.Errorf("no room in %q", roomURL)
	}

	db, err := boltstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	doc := crdt.NewDoc("")
	p, err := replica.NewPersister(ctx, doc, db.KV(roomID), replica.PersistOptions{})
	if err != nil {
		return err
	}
	defer p.Close()

	prov := provider.New(provider.Options{
		URL:       roomURL,
		Token:     token,
		Name:      "boardctl",
		Doc:       doc,
		Awareness: awareness.New(doc.ClientID()),
	})
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- prov.Run(runCtx) }()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !prov.Synced() {
		select {
		case err := <-done:
			return fmt.Errorf("pull %s: %w", roomID, err)
		case <-ticker.C:
		}
	}
	cancel()
	<-done

	n := replica.New(doc, replica.Options{}).Shapes().Len()
	slog.Info("room pulled", "room", roomID, "shapes", n, "db", dbPath)
	return nil
}

func rooms(dbPath string, out io.Writer) error {
	db, err := boltstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	names, err := db.Namespaces()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func load(ctx context.Context, dbPath, roomID string) ([]shape.Shape, error) {
	db, err := boltstore.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	r, err := replica.Restore(ctx, db.KV(roomID), nil)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return r.Shapes().All(), nil
}

func dump(ctx context.Context, dbPath, roomID string, out io.Writer) error {
	shapes, err := load(ctx, dbPath, roomID)
	if err != nil {
		return err
	}
	data, err := shape.MarshalList(shapes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

func exportPDF(ctx context.Context, dbPath, roomID, name string) error {
	shapes, err := load(ctx, dbPath, roomID)
	if err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := export.PDF(f, roomID, shapes); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	slog.Info("exported", "room", roomID, "shapes", len(shapes), "file", name)
	return nil
}
