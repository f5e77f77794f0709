package repositories

import (
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// InspectRow is the printable summary of one stored record.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Scope     string
	EntityID  string
	Detail    string
}

// Inspect walks every record under prefix in key order.
func Inspect(db *badger.DB, prefix string, fn func(InspectRow)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				fn(Describe(key, val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Describe decodes a record by its key family. Unknown or corrupted records
// are reported raw.
func Describe(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	parts := strings.Split(key, ":")
	if len(parts) >= 4 {
		row.Scope = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.EntityID = short(parts[3])
	}

	switch parts[0] {
	case "msg":
		if m, err := decodeMessage(val); err == nil {
			row.Type = "MESSAGE"
			row.Detail = m.Sender + ": " + m.Content
		}
	case "notif":
		if n, err := decodeNotification(val); err == nil {
			row.Type = "NOTIFICATION"
			row.Detail = n.SenderUsername + ": " + n.Content
			if n.Read {
				row.Detail += " (read)"
			}
		}
	case "user":
		if u, err := decodeUser(val); err == nil {
			row.Type = "USER"
			row.Scope = u.Username
			row.EntityID = short(u.ID)
			row.Timestamp = u.CreatedAt.Format("15:04:05")
			row.Detail = "created " + u.CreatedAt.Format(time.DateOnly)
		}
	}
	return row
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
