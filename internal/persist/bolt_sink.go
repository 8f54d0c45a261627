package persist

import (
	"bytes"
	"encoding/binary"

	"ironbook/internal/mbo"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var recordsBucket = []byte("mbo_records")

// BoltSink persists raw MBO records into an embedded bbolt database,
// one row per record keyed by an auto-incrementing sequence so
// insertion order is preserved on disk.
type BoltSink struct {
	db *bolt.DB
}

// OpenBoltSink opens (creating if absent) a bbolt database at path and
// ensures the records bucket exists.
func OpenBoltSink(path string) (*BoltSink, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bbolt db at %q", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating records bucket")
	}
	return &BoltSink{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltSink) Close() error {
	return s.db.Close()
}

// InsertBatch writes every record in one transaction: either all rows
// land or none do.
func (s *BoltSink) InsertBatch(records []mbo.Msg) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		for _, rec := range records {
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := bucket.Put(key, encodeRecord(rec)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "inserting batch")
	}
	return nil
}

// Count returns the total number of records stored so far.
func (s *BoltSink) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "counting records")
	}
	return n, nil
}

// encodeRecord lays out the row schema fields fixed-width and
// sequentially, matching the indexed columns a relational mirror of
// this store would expose: ts_event, ts_recv, instrument_id, publisher,
// order_id, action, side, price, size, flags, sequence, ts_in_delta,
// channel_id.
func encodeRecord(msg mbo.Msg) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, msg.TsEvent.UnixNano())
	_ = binary.Write(buf, binary.BigEndian, msg.TsRecv.UnixNano())
	_ = binary.Write(buf, binary.BigEndian, msg.InstrumentID)
	_ = binary.Write(buf, binary.BigEndian, msg.PublisherID)
	_ = binary.Write(buf, binary.BigEndian, int64(msg.OrderID))
	_ = binary.Write(buf, binary.BigEndian, byte(msg.Action))
	_ = binary.Write(buf, binary.BigEndian, byte(msg.Side))
	_ = binary.Write(buf, binary.BigEndian, msg.Price)
	_ = binary.Write(buf, binary.BigEndian, msg.Size)
	_ = binary.Write(buf, binary.BigEndian, byte(msg.Flags))
	_ = binary.Write(buf, binary.BigEndian, msg.Sequence)
	_ = binary.Write(buf, binary.BigEndian, msg.TsInDelta)
	_ = binary.Write(buf, binary.BigEndian, msg.ChannelID)
	return buf.Bytes()
}
