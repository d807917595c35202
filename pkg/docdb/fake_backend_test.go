package docdb

import "errors"

const (
	hookOpenSession       = "open_session"
	hookCloseSession      = "close_session"
	hookFlushSession      = "flush_session"
	hookOpenTransaction   = "open_transaction"
	hookCommitTransaction = "commit_transaction"
	hookCancelTransaction = "cancel_transaction"
	hookAddDocument       = "add_document"
	hookDeleteDocument    = "delete_document"
	hookReplaceDocument   = "replace_document"
	hookKeepAlive         = "keep_alive"
)

// recordingBackend records every hook call and fails the hooks named in fail.
type recordingBackend struct {
	calls  []string
	fail   map[string]error
	nextID DocID

	// sessions opened successfully and close attempts, for balance checks
	opened int
	closed int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{fail: make(map[string]error)}
}

func (b *recordingBackend) record(hook string) error {
	b.calls = append(b.calls, hook)
	return b.fail[hook]
}

func (b *recordingBackend) failWith(hook string, err error) *recordingBackend {
	b.fail[hook] = err
	return b
}

func (b *recordingBackend) reset() {
	b.calls = nil
}

func (b *recordingBackend) count(hook string) int {
	n := 0
	for _, c := range b.calls {
		if c == hook {
			n++
		}
	}
	return n
}

func (b *recordingBackend) OpenSession() error {
	err := b.record(hookOpenSession)
	if err == nil {
		b.opened++
	}
	return err
}

func (b *recordingBackend) CloseSession() error {
	b.closed++
	return b.record(hookCloseSession)
}

func (b *recordingBackend) FlushSession() error      { return b.record(hookFlushSession) }
func (b *recordingBackend) OpenTransaction() error   { return b.record(hookOpenTransaction) }
func (b *recordingBackend) CommitTransaction() error { return b.record(hookCommitTransaction) }
func (b *recordingBackend) CancelTransaction() error { return b.record(hookCancelTransaction) }

func (b *recordingBackend) AddDocument(doc Document) (DocID, error) {
	if err := b.record(hookAddDocument); err != nil {
		return 0, err
	}
	b.nextID++
	return b.nextID, nil
}

func (b *recordingBackend) DeleteDocument(id DocID) error {
	return b.record(hookDeleteDocument)
}

func (b *recordingBackend) ReplaceDocument(id DocID, doc Document) error {
	return b.record(hookReplaceDocument)
}

// keepAliveBackend adds the optional KeepAliver capability.
type keepAliveBackend struct {
	*recordingBackend
}

func (b keepAliveBackend) KeepAlive() error { return b.record(hookKeepAlive) }

var (
	errCancelFailed = errors.New("backend: cancel failed")
	errCloseFailed  = errors.New("backend: close failed")
	errOpenFailed   = errors.New("backend: open failed")
	errCommitFailed = errors.New("backend: commit failed")
)
