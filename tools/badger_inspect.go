package main

import (
	"activity-hub/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Offline inspector for the message keyspace. Unlike the debug HTTP server,
// this works on a copy of the data directory without running the hub.
func main() {
	dbPath := flag.String("db", "/tmp/activity-hub", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Activity", "Sender", "At", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(*prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				table.Append(toRow(string(item.Key()), val))
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
	fmt.Printf("\n%d entries under %q\n", count, *prefix)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}

func toRow(key string, val []byte) []string {
	msg, err := repositories.FromDiskValue(val)
	if err != nil {
		return []string{key, "?", "?", "?", fmt.Sprintf("unreadable (%d bytes)", len(val))}
	}

	body := strings.ReplaceAll(msg.Body, "\n", " ")
	if len(body) > 80 {
		body = body[:77] + "..."
	}

	return []string{
		key,
		msg.Activity.String(),
		msg.SenderName,
		msg.CreatedAt.Format(time.DateTime),
		body,
	}
}
