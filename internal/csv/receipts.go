package csv

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"moff.io/wallet-bridge/pkg/errors"
)

var receiptHeader = []string{"sent_at", "request_id", "network", "recipient", "amount", "batch", "tx_hash", "explorer"}

// Receipt is one confirmed send.
type Receipt struct {
	SentAt    time.Time
	RequestID string
	Network   string
	Recipient string
	Amount    string
	Batch     int
	TxHash    string
	Explorer  string
}

func (r Receipt) record() []string {
	return []string{
		r.SentAt.UTC().Format(time.RFC3339),
		r.RequestID,
		r.Network,
		r.Recipient,
		r.Amount,
		strconv.Itoa(r.Batch),
		r.TxHash,
		r.Explorer,
	}
}

// AppendReceipt appends r to the csv file at path, writing the header when the file is new.
func AppendReceipt(path string, r Receipt) error {
	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "stat receipts file")
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "open receipts file")
	}
	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(receiptHeader); err != nil {
			file.Close()
			return errors.Wrap(err, "write receipts header")
		}
	}
	if err := writer.Write(r.record()); err != nil {
		file.Close()
		return errors.Wrap(err, "write receipt")
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return errors.Wrap(err, "flush receipts")
	}
	return errors.Wrap(file.Close(), "close receipts file")
}
