package login

import (
	"fmt"
	"io"
	"sync"
)

var _ Notifier = (*WriterNotifier)(nil)

// WriterNotifier prints notices as lines on a writer
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier writing to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "✓ %s\n", message)
}

func (n *WriterNotifier) Failure(message string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		fmt.Fprintf(n.w, "✗ %s: %v\n", message, err)
		return
	}
	fmt.Fprintf(n.w, "✗ %s\n", message)
}
