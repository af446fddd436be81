package email

import (
	"context"
	"fmt"
	"os"
)

// FileMailbox serves saved .eml files as a mailbox. Every file matches every
// search, in the order given, so the last file is treated as the newest.
type FileMailbox struct {
	paths []string
}

// NewFileMailbox creates a mailbox over paths
func NewFileMailbox(paths ...string) *FileMailbox {
	return &FileMailbox{paths: paths}
}

func (m *FileMailbox) Connect(context.Context) error        { return nil }
func (m *FileMailbox) Select(context.Context, string) error { return nil }
func (m *FileMailbox) Logout(context.Context) error         { return nil }

// Search returns a sequence number for every file
func (m *FileMailbox) Search(ctx context.Context, _ string) ([]uint32, error) {
	seqNums := make([]uint32, len(m.paths))
	for i := range m.paths {
		seqNums[i] = uint32(i + 1)
	}
	return seqNums, ctx.Err()
}

// Fetch reads the file with sequence number seqNum
func (m *FileMailbox) Fetch(ctx context.Context, seqNum uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seqNum == 0 || int(seqNum) > len(m.paths) {
		return nil, fmt.Errorf("no message with sequence number %d", seqNum)
	}
	data, err := os.ReadFile(m.paths[seqNum-1])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.paths[seqNum-1], err)
	}
	return data, nil
}
