package repository

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"auction-server/internal/auctionerrors"
	model "auction-server/internal/models"
)

// Fixed field widths. Strings are NUL-padded and hold at most width-1 bytes.
const (
	UsernameWidth    = 50
	DigestWidth      = 60
	ItemNameWidth    = 50
	DescriptionWidth = 100

	userRecordSize = 8 + UsernameWidth + DigestWidth + DigestWidth + 4 + 8 + 8

	itemHeaderSize = 8 + ItemNameWidth + DescriptionWidth + 8*5 + 4 + 4
	bidEntrySize   = 16
)

var le = binary.LittleEndian

// ItemRecordSize returns the on-disk size of an item with the given bid
// history capacity.
func ItemRecordSize(historyCapacity int) int {
	return itemHeaderSize + historyCapacity*bidEntrySize
}

func putString(buf []byte, s string) {
	n := copy(buf[:len(buf)-1], s)
	clear(buf[n:])
}

func getString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// fieldWriter and fieldReader walk a record buffer front to back.
type fieldWriter struct {
	buf []byte
	off int
}

func (w *fieldWriter) int64(v int64) {
	le.PutUint64(w.buf[w.off:], uint64(v))
	w.off += 8
}

func (w *fieldWriter) int32(v int32) {
	le.PutUint32(w.buf[w.off:], uint32(v))
	w.off += 4
}

func (w *fieldWriter) str(s string, width int) {
	putString(w.buf[w.off:w.off+width], s)
	w.off += width
}

// raw fills the full width with no terminator; bcrypt digests are exactly
// DigestWidth bytes.
func (w *fieldWriter) raw(s string, width int) {
	n := copy(w.buf[w.off:w.off+width], s)
	clear(w.buf[w.off+n : w.off+width])
	w.off += width
}

type fieldReader struct {
	buf []byte
	off int
}

func (r *fieldReader) int64() int64 {
	v := int64(le.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}

func (r *fieldReader) int32() int32 {
	v := int32(le.Uint32(r.buf[r.off:]))
	r.off += 4
	return v
}

func (r *fieldReader) str(width int) string {
	s := getString(r.buf[r.off : r.off+width])
	r.off += width
	return s
}

func encodeUser(u model.User, buf []byte) {
	w := fieldWriter{buf: buf}
	w.int64(u.ID)
	w.str(u.Username, UsernameWidth)
	w.raw(u.PasswordHash, DigestWidth)
	w.raw(u.AnswerHash, DigestWidth)
	w.int32(int32(u.Role))
	w.int64(u.Balance)
	w.int64(u.CooldownUntil)
}

func decodeUser(buf []byte) model.User {
	r := fieldReader{buf: buf}
	var u model.User
	u.ID = r.int64()
	u.Username = r.str(UsernameWidth)
	u.PasswordHash = r.str(DigestWidth)
	u.AnswerHash = r.str(DigestWidth)
	u.Role = model.Role(r.int32())
	u.Balance = r.int64()
	u.CooldownUntil = r.int64()
	return u
}

func encodeItem(item model.Item, capacity int, buf []byte) error {
	if len(item.Bids) > capacity {
		return fmt.Errorf("item %d has %d bid entries, capacity %d: %w",
			item.ID, len(item.Bids), capacity, auctionerrors.ErrInvalidInput)
	}

	w := fieldWriter{buf: buf}
	w.int64(item.ID)
	w.str(item.Name, ItemNameWidth)
	w.str(item.Description, DescriptionWidth)
	w.int64(item.SellerID)
	w.int64(item.WinnerID)
	w.int64(item.BasePrice)
	w.int64(item.CurrentBid)
	w.int64(item.EndTime)
	w.int32(int32(item.Status))
	w.int32(int32(len(item.Bids)))
	for _, b := range item.Bids {
		w.int64(b.BidderID)
		w.int64(b.Amount)
	}
	clear(buf[w.off:])
	return nil
}

func decodeItem(buf []byte, capacity int) (model.Item, error) {
	r := fieldReader{buf: buf}
	var item model.Item
	item.ID = r.int64()
	item.Name = r.str(ItemNameWidth)
	item.Description = r.str(DescriptionWidth)
	item.SellerID = r.int64()
	item.WinnerID = r.int64()
	item.BasePrice = r.int64()
	item.CurrentBid = r.int64()
	item.EndTime = r.int64()
	item.Status = model.ItemStatus(r.int32())
	n := int(r.int32())
	if n < 0 || n > capacity {
		return model.Item{}, fmt.Errorf("item %d history length %d: %w", item.ID, n, auctionerrors.ErrCorruptRecord)
	}
	item.Bids = make([]model.BidEntry, n)
	for i := range item.Bids {
		item.Bids[i].BidderID = r.int64()
		item.Bids[i].Amount = r.int64()
	}
	return item, nil
}
